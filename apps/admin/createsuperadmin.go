package main

import (
	"context"
	"fmt"

	"github.com/trezcool/feira/core/user"
)

func (cl *commandLine) createSuperAdmin(ctx context.Context, uname, email, pwd string) error {
	svc, err := cl.userSvc()
	if err != nil {
		return err
	}
	nu := user.NewUser{
		Name:            uname,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           []string{user.RoleSuperAdmin},
	}
	if err = nu.Validate(ctx, cl.validate, svc); err != nil {
		return err
	}
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cl.out, "super admin %q created (id %s)\n", usr.Username, usr.ID)
	return nil
}
