package main

import (
	"github.com/trezcool/feira/storage/database"
)

func (cl *commandLine) migrate(command string, args ...string) error {
	db, err := cl.openDB()
	if err != nil {
		return err
	}
	return database.GooseRunFunc(command, db, args...)
}
