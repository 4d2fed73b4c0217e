package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core/form"
)

// check flags authoring slips the Definition constructor has no opinion on:
// unlabeled fields, text inputs without a length cap and required selects
// stuck behind optional parents.
func (cli *commandLine) check() error {
	var findings []string
	for _, def := range cli.registry.Definitions() {
		findings = append(findings, lintDefinition(def)...)
	}
	if len(findings) == 0 {
		fmt.Fprintln(cli.out, "all forms clean")
		return nil
	}
	for _, finding := range findings {
		fmt.Fprintln(cli.out, finding)
	}
	return errors.Errorf("%d finding(s)", len(findings))
}

func lintDefinition(def *form.Definition) []string {
	var findings []string
	note := func(format string, args ...interface{}) {
		findings = append(findings, fmt.Sprintf("form %q: %s", def.Name(), fmt.Sprintf(format, args...)))
	}

	for _, f := range def.Fields() {
		if f.Label == "" {
			note("field %q has no label", f.Name)
		}
		if f.Kind == form.KindText && !strings.Contains(f.Rules, "max=") {
			note("field %q takes unbounded input, add a max rule", f.Name)
		}
		if f.Required && len(f.DependsOn) > 0 {
			if parent, ok := def.Field(f.DependsOn[0]); ok && !parent.Required {
				note("required field %q hangs off optional %q", f.Name, parent.Name)
			}
		}
	}
	return findings
}
