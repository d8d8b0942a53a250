package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = user.CheckPasswordPolicy(pwd, usr.Names, usr.Username, usr.Email); err != nil {
		return errors.Errorf("password rejected by policy (%s)", err)
	}
	if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	return nil
}
