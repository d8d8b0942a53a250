package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/trezcool/investiga/core/ingest"
)

func (cli *commandLine) ingest(kindName, path string) error {
	kind, err := ingest.ParseKind(kindName)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rep, err := cli.ingestSvc.Ingest(context.Background(), kind, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
