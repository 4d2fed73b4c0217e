package main

import (
	"log"
	"os"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
	"github.com/trezcool/fomu/core/mapping"
	"github.com/trezcool/fomu/core/register"
	academiasvc "github.com/trezcool/fomu/services/academia"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "FORMLINT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	registry, err := form.NewRegistry(
		register.Student(),
		register.Staff(),
		mapping.SubjectAssignment(),
	)
	errAndDie(err)

	cli := commandLine{
		registry: registry,
		src:      academiasvc.NewClient(conf, core.NopLogger{}),
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
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
