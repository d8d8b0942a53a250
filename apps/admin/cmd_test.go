package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/ingest"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/user"
	cachesvc "github.com/trezcool/investiga/services/cache"
	inmemdb "github.com/trezcool/investiga/storage/database/inmem"
	testutil "github.com/trezcool/investiga/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, inmemdb.NewRoleRepository(db), cachesvc.NewMemoryCache(), nil, conf)

	// start CLI
	return &commandLine{
		usrSvc:    usrSvc,
		ingestSvc: ingest.NewService(usrSvc, research.NewService(inmemdb.NewResearchRepository(db)), validate, translator),
		validate:  validate,
		out:       new(bytes.Buffer),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	runMigrationsFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "missing flags", args: []string{"adduser", "-username", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@uni.cl", "-names", "Boss"}, wantErr: errHelp},
		{
			name:       "unknown role",
			args:       []string{"adduser", "-username", "boss", "-email", "boss@uni.cl", "-names", "Boss", "-role", "dean"},
			extra:      "Xk93-lmnq!",
			wantErrStr: `unknown role "dean"`,
		},
		{
			name:  "create",
			args:  []string{"adduser", "-username", "boss", "-email", "Boss@uni.cl", "-names", "Boss"},
			extra: "Xk93-lmnq!",
		},
		{
			name:  "update existing",
			args:  []string{"adduser", "-username", "boss", "-email", "boss@uni.cl", "-names", "Boss", "-role", "investigator"},
			extra: "Zq71-wert?",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, "boss@uni.cl")
	require.NoError(t, err)
	require.NotNil(t, usr.RoleID)
	assert.Equal(t, role.Investigator, *usr.RoleID)
	assert.NoError(t, usr.CheckPassword("Zq71-wert?"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@uni.cl", "Old-pass1!", nil)

	tests := []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "Xk93-lmnq!", wantErr: user.ErrNotFound},
		{
			name:       "weak password",
			args:       []string{"resetpassword", "-username", usr.Username},
			extra:      "12345678",
			wantErrStr: "password rejected by policy (pwdnotallnum)",
		},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "Xk93-lmnq!"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@uni.cl"}, extra: "Zq71-wert?"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_ingest(t *testing.T) {
	cli := setup(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Investigadores"))
	require.NoError(t, f.SetSheetRow("Investigadores", "A1", &[]interface{}{"Correo", "Nombres"}))
	require.NoError(t, f.SetSheetRow("Investigadores", "A2", &[]interface{}{"ines@uni.cl", "Ines"}))
	path := filepath.Join(t.TempDir(), "investigadores.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tests := []cliTest{
		{name: "missing flags", args: []string{"ingest", "-kind", "researchers"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"ingest", "-kind", "deans", "-file", path}, wantErr: ingest.ErrUnknownKind},
		{name: "missing file", args: []string{"ingest", "-kind", "researchers", "-file", path + ".nope"}, wantErrStr: "open " + path + ".nope: no such file or directory"},
		{name: "ingest", args: []string{"ingest", "-kind", "researchers", "-file", path}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			cli.out.(*bytes.Buffer).Reset()
			err := cli.run(args)
			tt.check(t, err)
			if err == nil && tt.wantErr == nil && tt.wantErrStr == "" {
				var rep ingest.Report
				require.NoError(t, json.Unmarshal(cli.out.(*bytes.Buffer).Bytes(), &rep))
				assert.Equal(t, 1, rep.Created)
			}
		})
	}

	usr, err := cli.usrSvc.GetByEmail(context.Background(), "ines@uni.cl")
	require.NoError(t, err)
	require.NotNil(t, usr.RoleID)
	assert.Equal(t, role.Investigator, *usr.RoleID)
}
