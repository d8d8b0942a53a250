package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/user"
)

func roleByName(name string) (int, error) {
	name = core.CleanString(name, true /* lower */)
	for id, n := range role.Names {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, names, roleName, pwd string) error {
	ctx := context.Background()
	roleID, err := roleByName(roleName)
	if err != nil {
		return err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err == nil {
		if err = user.CheckPasswordPolicy(pwd, usr.Names, usr.Username, usr.Email); err != nil {
			return errors.Errorf("password rejected by policy (%s)", err)
		}
		if usr, err = cli.usrSvc.Update(ctx, usr, user.UpdateUser{RoleID: core.NullIntFrom(roleID)}); err != nil {
			return err
		}
		_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
		return err
	}
	if errors.Cause(err) != user.ErrNotFound {
		return err
	}

	nu := user.NewUser{
		Email:           email,
		Username:        uname,
		Names:           names,
		RoleID:          &roleID,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err = cli.usrSvc.Create(ctx, nu)
	return err
}
