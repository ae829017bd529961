package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	dig_container "github.com/trezcool/feira/apps/api/di/dig"
	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/user"
	"github.com/trezcool/feira/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	c := dig_container.New()
	var closers []func() error

	cmd := commandLine{out: os.Stdout}
	errAndDie(c.Invoke(func(conf *core.Config, validate *validator.Validate) {
		cmd.conf = conf
		cmd.validate = validate
	}))
	cmd.openDB = func() (*sqlx.DB, error) {
		if cmd.conf.Database.Engine != core.EnginePostgres {
			return nil, errors.Errorf("migrations only apply to %s (engine is %s)", core.EnginePostgres, cmd.conf.Database.Engine)
		}
		db, err := database.Open(cmd.conf)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db.Close)
		return db, nil
	}
	cmd.userSvc = func() (svc *user.Service, err error) {
		err = c.Invoke(func(s *user.Service, closeDB dig_container.Closer) {
			svc = s
			closers = append(closers, closeDB)
		})
		return svc, err
	}

	err := cmd.run(os.Args)
	for _, closeFn := range closers {
		if cerr := closeFn(); cerr != nil {
			logger.Printf("closing store: %v", cerr)
		}
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
