package main

import (
	"context"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/kabinet/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrate(args []string) error {
	if err := database.SetupGoose(cli.conf); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(context.Background(), args[0], cli.db.DB, database.MigrationsDir(cli.conf), arguments...)
}
