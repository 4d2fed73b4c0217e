package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/fomu/apps/api/echo"
	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
	"github.com/trezcool/fomu/core/mapping"
	"github.com/trezcool/fomu/core/register"
	academiasvc "github.com/trezcool/fomu/services/academia"
	logsvc "github.com/trezcool/fomu/services/logger"
	gocachestore "github.com/trezcool/fomu/storage/session/gocache"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	academiaLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ACADEMIA : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	academiaLogger.Enable(!conf.Debug)

	// set up services
	academia := academiasvc.NewClient(conf, academiaLogger)

	registry, err := form.NewRegistry(
		register.Student(),
		register.Staff(),
		mapping.SubjectAssignment(),
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering forms: %v", err), err)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	formSvc := form.NewService(
		registry,
		gocachestore.NewSessionRepository(conf),
		form.NewCachedSource(academia, conf),
		academia,
		academia,
		validate,
		translator,
		conf,
		logger,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			FormSvc:    formSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
