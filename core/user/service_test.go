package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/user"
	testutil "github.com/trezcool/feira/tests"
)

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	usr := env.CreateSuperAdmin(t)
	inactive := env.CreateSuperAdmin(t)
	_, err := env.Users.SetActive(ctx, inactive, false)
	require.NoError(t, err)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "unknown user", uname: "nobody", pwd: testutil.Password, wantErr: user.ErrAuthenticationFailed},
		{name: "wrong password", uname: usr.Username, pwd: "lol", wantErr: user.ErrAuthenticationFailed},
		{name: "inactive", uname: inactive.Username, pwd: testutil.Password, wantErr: user.ErrAccountDeactivated},
		{name: "ok", uname: usr.Username, pwd: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.Users.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.False(t, got.LastLogin.IsZero())
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	existing := env.CreateSuperAdmin(t)

	valid := func() user.NewUser {
		return user.NewUser{
			Name:            "Jean Mbala",
			Username:        "jmbala",
			Email:           "jean@test.cd",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Roles:           []string{user.RoleSuperAdmin},
		}
	}
	tests := []struct {
		name    string
		mutate  func(nu *user.NewUser)
		wantErr bool
	}{
		{name: "valid", mutate: func(*user.NewUser) {}},
		{name: "short username", mutate: func(nu *user.NewUser) { nu.Username = "jm" }, wantErr: true},
		{name: "bad role", mutate: func(nu *user.NewUser) { nu.Roles = []string{"king"} }, wantErr: true},
		{name: "weak password", mutate: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "password", "password" }, wantErr: true},
		{name: "confirm mismatch", mutate: func(nu *user.NewUser) { nu.PasswordConfirm = "other" }, wantErr: true},
		{name: "username taken", mutate: func(nu *user.NewUser) { nu.Username = existing.Username }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := nu.Validate(ctx, env.Validate, env.Users)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("taken username is a field error", func(t *testing.T) {
		err := env.Users.CheckUniqueness(ctx, existing.Username, "")
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "username", verr.Fields[0].Field)
	})
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	usr := env.CreateSuperAdmin(t)

	err := env.Users.ResetPassword(ctx, user.ResetUserPassword{Username: usr.Username, Password: "N3w-Secret!"})
	require.NoError(t, err)

	_, err = env.Users.Authenticate(ctx, usr.Username, testutil.Password)
	assert.Equal(t, user.ErrAuthenticationFailed, errors.Cause(err))
	_, err = env.Users.Authenticate(ctx, usr.Username, "N3w-Secret!")
	assert.NoError(t, err)

	err = env.Users.ResetPassword(ctx, user.ResetUserPassword{Username: "nobody", Password: "N3w-Secret!"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}
