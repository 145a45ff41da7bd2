package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/storage/database"
	"github.com/trezcool/kabinet/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(context.Background(), db))

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// start CLI
	cli := commandLine{
		conf:       conf,
		db:         db,
		identities: identity.NewService(sqlxrepos.NewIdentityRepository(db)),
		catalog:    academic.NewService(sqlxrepos.NewAcademicRepository(db)),
		validate:   validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
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
