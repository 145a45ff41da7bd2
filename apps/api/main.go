package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/kabinet/apps/api/echo"
	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/grading"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/session"
	"github.com/trezcool/kabinet/core/submission"
	logsvc "github.com/trezcool/kabinet/services/logger"
	"github.com/trezcool/kabinet/storage/database"
	sqlxrepos "github.com/trezcool/kabinet/storage/database/sqlx"
	"github.com/trezcool/kabinet/storage/filestore"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	ctx := context.Background()
	if err = database.Ping(ctx, db); err != nil {
		dbLogger.Fatal(fmt.Sprintf("connecting to database: %v", err), err)
	}
	if err = database.Migrate(ctx, db, conf); err != nil {
		dbLogger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	store, err := filestore.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	// set up services
	subRepo := sqlxrepos.NewSubmissionRepository(db)
	idSvc := identity.NewService(sqlxrepos.NewIdentityRepository(db))
	acSvc := academic.NewService(sqlxrepos.NewAcademicRepository(db))
	sessions := session.NewManager(sqlxrepos.NewSessionRepository(db), conf, logger)
	subSvc := submission.NewService(subRepo, acSvc, idSvc, store, conf, logger)
	gradeSvc := grading.NewService(db, sqlxrepos.NewGradeRepository(db), subRepo, acSvc, idSvc, store, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	if conf.Server.DebugAddress != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			DB:          db,
			IdentitySvc: idSvc,
			Sessions:    sessions,
			SubmitSvc:   subSvc,
			GradingSvc:  gradeSvc,
			Store:       store,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
