package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
	"github.com/trezcool/fomu/core/mapping"
	"github.com/trezcool/fomu/core/register"
	academiasvc "github.com/trezcool/fomu/services/academia"
	gocachestore "github.com/trezcool/fomu/storage/session/gocache"
)

func main() {
	logger := log.New(os.Stderr, "WIZARD : ", log.LstdFlags)

	formName := "signup"
	if len(os.Args) > 1 {
		formName = os.Args[1]
	}

	conf := core.NewConfig()
	client := academiasvc.NewClient(conf, core.NopLogger{})

	registry, err := form.NewRegistry(
		register.Student(),
		register.Staff(),
		mapping.SubjectAssignment(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	svc := form.NewService(
		registry,
		gocachestore.NewSessionRepository(conf),
		form.NewCachedSource(client, conf),
		client,
		client,
		validate,
		translator,
		conf,
		core.NopLogger{},
	)

	// the operator holds full authority here; the academia api key is the
	// real gate
	w := &wizard{svc: svc, prompt: surveyPrompter{}, out: os.Stdout}
	if err := w.run(context.Background(), formName, core.RoleAdmin, core.RoleTeacher, core.RoleStudent); err != nil {
		if err == errAborted {
			os.Exit(130)
		}
		logger.Fatal(err)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
