package main

import (
	"context"
	"fmt"

	"github.com/trezcool/feira/core/user"
)

func (cl *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	svc, err := cl.userSvc()
	if err != nil {
		return err
	}
	data := user.ResetUserPassword{Username: uname, Password: pwd, PasswordConfirm: pwd}
	if err = data.Validate(cl.validate); err != nil {
		return err
	}
	if err = svc.ResetPassword(ctx, data); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cl.out, "password of %q updated\n", data.Username)
	return nil
}
