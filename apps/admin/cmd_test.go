package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core/user"
	"github.com/trezcool/feira/storage/database"
	testutil "github.com/trezcool/feira/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv()
	return &commandLine{
		conf:     env.Conf,
		validate: env.Validate,
		out:      io.Discard,
		openDB:   func() (*sqlx.DB, error) { return nil, nil },
		userSvc:  func() (*user.Service, error) { return env.Users, nil },
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	pwd        string
	confirm    string
}

func mockPassword(pwd, confirm string) {
	calls := 0
	readPasswordFunc = func(int) ([]byte, error) {
		calls++
		if calls > 1 {
			return []byte(confirm), nil
		}
		return []byte(pwd), nil
	}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cmd, _ := setup(t)

	orig := database.GooseRunFunc
	t.Cleanup(func() { database.GooseRunFunc = orig })
	database.GooseRunFunc = func(command string, _ *sqlx.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
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
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "scores", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cmd.run(append([]string{"admin"}, tt.args...)))
		})
	}

	t.Run("store error", func(t *testing.T) {
		cmd.openDB = func() (*sqlx.DB, error) { return nil, errors.New("no database") }
		assert.EqualError(t, cmd.run([]string{"admin", "migrate", "up"}), "no database")
	})
}

func Test_commandLine_createSuperAdmin(t *testing.T) {
	cmd, env := setup(t)
	existing := env.CreateSuperAdmin(t)
	pwd := testutil.Password

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no username", args: []string{"createsuperadmin"}, wantErr: errHelp},
		{name: "no password", args: []string{"createsuperadmin", "-username", "boss"}, wantErr: errHelp},
		{name: "passwords mismatch", args: []string{"createsuperadmin", "-username", "boss"}, pwd: pwd, confirm: "other", wantErrStr: "passwords do not match"},
		{name: "username taken", args: []string{"createsuperadmin", "-username", existing.Username}, pwd: pwd, confirm: pwd, wantErrStr: "a user with this username already exists"},
		{name: "ok", args: []string{"createsuperadmin", "-username", "Boss", "-email", "boss@test.cd"}, pwd: pwd, confirm: pwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd, tt.confirm)
			checkErr(t, tt, cmd.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := env.Users.Authenticate(context.Background(), "boss", pwd)
	require.NoError(t, err)
	assert.True(t, usr.IsSuperAdmin())
	assert.Equal(t, "boss@test.cd", usr.Email)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cmd, env := setup(t)
	usr := env.CreateSuperAdmin(t)
	newPwd := "N3w-Secret!"

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: newPwd, confirm: newPwd, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-username", usr.Username}, pwd: newPwd, confirm: newPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd, tt.confirm)
			checkErr(t, tt, cmd.run(append([]string{"admin"}, tt.args...)))
		})
	}

	_, err := env.Users.Authenticate(context.Background(), usr.Username, newPwd)
	assert.NoError(t, err)
}
