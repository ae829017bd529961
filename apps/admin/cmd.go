package main

import (
	"context"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	validate *validator.Validate
	out      io.Writer
	openDB   func() (*sqlx.DB, error)
	userSvc  func() (*user.Service, error)
}

func (cl *commandLine) app() *cli.App {
	return &cli.App{
		Name:           "admin",
		Usage:          "Feira administration",
		Writer:         cl.out,
		ErrWriter:      cl.out,
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			_ = cli.ShowAppHelp(c)
			return errHelp
		},
		Commands: []*cli.Command{
			{
				Name:      "migrate",
				Usage:     "run a goose command against the database (up, down, status, ...)",
				ArgsUsage: "COMMAND [ARGS...]",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						_ = cli.ShowCommandHelp(c, c.Command.Name)
						return errHelp
					}
					return cl.migrate(c.Args().First(), c.Args().Tail()...)
				},
			},
			{
				Name:  "createsuperadmin",
				Usage: "create a super admin; the password is prompted next",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "the new user's username"},
					&cli.StringFlag{Name: "email", Usage: "the new user's email"},
				},
				Action: func(c *cli.Context) error {
					uname := c.String("username")
					if uname == "" {
						_ = cli.ShowCommandHelp(c, c.Command.Name)
						return errHelp
					}
					pwd, err := cl.promptPassword(c)
					if err != nil {
						return err
					}
					return cl.createSuperAdmin(c.Context, uname, c.String("email"), pwd)
				},
			},
			{
				Name:  "resetpassword",
				Usage: "reset a user's password; the new password is prompted next",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "the user's username"},
				},
				Action: func(c *cli.Context) error {
					uname := c.String("username")
					if uname == "" {
						_ = cli.ShowCommandHelp(c, c.Command.Name)
						return errHelp
					}
					pwd, err := cl.promptPassword(c)
					if err != nil {
						return err
					}
					return cl.resetPassword(c.Context, uname, pwd)
				},
			},
		},
	}
}

func (cl *commandLine) run(args []string) error {
	return cl.app().RunContext(context.Background(), args)
}

// promptPassword reads a password and its confirmation from the terminal.
func (cl *commandLine) promptPassword(c *cli.Context) (string, error) {
	_, _ = fmt.Fprint(cl.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cl.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cli.ShowCommandHelp(c, c.Command.Name)
		return "", errHelp
	}

	_, _ = fmt.Fprint(cl.out, "Confirm password:")
	confirm, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cl.out)
	if err != nil {
		return "", err
	}
	if string(confirm) != string(pwd) {
		return "", errors.New("passwords do not match")
	}
	return string(pwd), nil
}
