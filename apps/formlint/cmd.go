package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/fomu/core/form"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	registry *form.Registry
	src      form.Source
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  list                - list the registered forms")
	fmt.Fprintln(cli.out, "  describe -form NAME - dump one form as JSON")
	fmt.Fprintln(cli.out, "  check               - lint the registered forms")
	fmt.Fprintln(cli.out, "  probe [-form NAME]  - fetch every option source once and report")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	describeCmd := flag.NewFlagSet("describe", flag.ExitOnError)
	describeForm := describeCmd.String("form", "", "The form to describe.")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeForm := probeCmd.String("form", "", "Limit the probe to one form's sources.")

	switch args[1] {
	case "list":
		return cli.list()
	case "describe":
		if err := describeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *describeForm == "" {
			describeCmd.Usage()
			return errHelp
		}
		return cli.describe(*describeForm)
	case "check":
		return cli.check()
	case "probe":
		if err := probeCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.probe(*probeForm)
	default:
		cli.printUsage()
		return errHelp
	}
}
