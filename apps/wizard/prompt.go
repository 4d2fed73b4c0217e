package main

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/pkg/errors"
)

var errAborted = errors.New("aborted")

// prompter keeps the walk testable without a terminal.
type prompter interface {
	input(label, def string) (string, error)
	password(label string) (string, error)
	selectOne(label string, options []string) (int, error)
	confirm(label string) (bool, error)
}

type surveyPrompter struct{}

var _ prompter = surveyPrompter{}

func (surveyPrompter) input(label, def string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Input{Message: label, Default: def}, &out)
	return out, translateInterrupt(err)
}

func (surveyPrompter) password(label string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Password{Message: label}, &out)
	return out, translateInterrupt(err)
}

func (surveyPrompter) selectOne(label string, options []string) (int, error) {
	var out string
	if err := survey.AskOne(&survey.Select{Message: label, Options: options}, &out); err != nil {
		return 0, translateInterrupt(err)
	}
	for i, option := range options {
		if option == out {
			return i, nil
		}
	}
	return 0, errors.Errorf("%q is not a choice", out)
}

func (surveyPrompter) confirm(label string) (bool, error) {
	var out bool
	err := survey.AskOne(&survey.Confirm{Message: label, Default: true}, &out)
	return out, translateInterrupt(err)
}

func translateInterrupt(err error) error {
	if err == terminal.InterruptErr {
		return errAborted
	}
	return err
}
