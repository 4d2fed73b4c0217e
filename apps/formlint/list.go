package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

func (cli *commandLine) list() error {
	for _, def := range cli.registry.Definitions() {
		roles := "public"
		if len(def.AllowedRoles()) > 0 {
			roles = strings.Join(def.AllowedRoles(), " ")
		}
		fmt.Fprintf(cli.out, "%s - %s (%s -> %s)\n", def.Name(), def.Title(), roles, def.SubmitRoute())
		for _, step := range def.Steps() {
			fmt.Fprintf(cli.out, "  %s: %s\n", step.Name, strings.Join(step.Fields, ", "))
		}
	}
	return nil
}

func (cli *commandLine) describe(name string) error {
	def, err := cli.registry.Get(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(def.Info())
}
