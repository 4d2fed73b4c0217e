package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core/form"
)

// probe fetches every option source once, unfiltered, and reports which
// entities the academia API actually serves. Handy before a deploy: a
// renamed entity route surfaces here instead of in front of a student.
func (cli *commandLine) probe(formName string) error {
	defs := cli.registry.Definitions()
	if formName != "" {
		def, err := cli.registry.Get(formName)
		if err != nil {
			return err
		}
		defs = []*form.Definition{def}
	}

	seen := make(map[string]bool)
	entities := make([]string, 0)
	for _, def := range defs {
		for _, f := range def.Fields() {
			if f.Source != "" && !seen[f.Source] {
				seen[f.Source] = true
				entities = append(entities, f.Source)
			}
		}
	}
	sort.Strings(entities)

	ctx := context.Background()
	var unreachable int
	for _, entity := range entities {
		opts, err := cli.src.FetchOptions(ctx, entity, nil)
		if err != nil {
			unreachable++
			fmt.Fprintf(cli.out, "%s: %v\n", entity, err)
			continue
		}
		fmt.Fprintf(cli.out, "%s: %d options\n", entity, len(opts))
	}
	if unreachable > 0 {
		return errors.Errorf("%d of %d sources unreachable", unreachable, len(entities))
	}
	return nil
}
