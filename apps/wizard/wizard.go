package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

// wizard walks one form session from the terminal: prompt, verify, advance,
// submit. Validation failures re-prompt instead of aborting.
type wizard struct {
	svc    *form.Service
	prompt prompter
	out    io.Writer
}

func (w *wizard) run(ctx context.Context, formName string, roles ...string) error {
	snap, err := w.svc.Open(ctx, formName, roles...)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, snap.Title)

	for {
		step := snap.Steps[snap.Step]
		fmt.Fprintf(w.out, "\n-- %s --\n", step.Title)
		for _, f := range step.Fields {
			if snap, err = w.fillField(ctx, snap.ID, f); err != nil {
				return err
			}
		}

		// ownership codes before moving on
		for _, f := range snap.Steps[snap.Step].Fields {
			if f.Verify && !f.Verified {
				if snap, err = w.verifyField(ctx, snap.ID, f); err != nil {
					return err
				}
			}
		}

		if snap.Step == len(snap.Steps)-1 {
			break
		}
		next, err := w.svc.Next(ctx, snap.ID)
		if err != nil {
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				fmt.Fprintln(w.out, vErr.Error())
				continue
			}
			return err
		}
		snap = next
	}

	ok, err := w.prompt.confirm(fmt.Sprintf("Submit %q?", snap.Title))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w.out, "Submission cancelled.")
		return nil
	}
	if _, err := w.svc.Submit(ctx, snap.ID); err != nil {
		return err
	}
	fmt.Fprintln(w.out, "Submitted.")
	return nil
}

func (w *wizard) fillField(ctx context.Context, id string, f form.FieldSnapshot) (*form.Snapshot, error) {
	for {
		value, err := w.promptValue(ctx, id, f)
		if err != nil {
			return nil, err
		}
		snap, err := w.svc.SetField(ctx, id, f.Name, value)
		if err != nil {
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				fmt.Fprintln(w.out, vErr.Error())
				continue
			}
			return nil, err
		}
		return snap, nil
	}
}

func (w *wizard) promptValue(ctx context.Context, id string, f form.FieldSnapshot) (string, error) {
	switch f.Kind {
	case form.KindSelect:
		opts, err := w.svc.FieldOptions(ctx, id, f.Name)
		if err != nil {
			return "", err
		}
		if len(opts) == 0 {
			return "", errors.Errorf("no choices available for %q", f.Name)
		}
		labels := make([]string, 0, len(opts))
		for _, o := range opts {
			labels = append(labels, o.Label)
		}
		i, err := w.prompt.selectOne(f.Label, labels)
		if err != nil {
			return "", err
		}
		return opts[i].ID, nil
	case form.KindPassword:
		return w.prompt.password(f.Label)
	default:
		return w.prompt.input(f.Label, f.Value)
	}
}

func (w *wizard) verifyField(ctx context.Context, id string, f form.FieldSnapshot) (*form.Snapshot, error) {
	if _, err := w.svc.RequestVerification(ctx, id, f.Name); err != nil {
		return nil, err
	}
	fmt.Fprintf(w.out, "a code was sent to %s\n", f.Value)

	for {
		code, err := w.prompt.input(fmt.Sprintf("%s code", f.Label), "")
		if err != nil {
			return nil, err
		}
		snap, err := w.svc.ConfirmVerification(ctx, id, f.Name, code)
		if err != nil {
			cause := errors.Cause(err)
			if cause == form.ErrCodeMismatch {
				fmt.Fprintln(w.out, cause.Error())
				continue
			}
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				fmt.Fprintln(w.out, vErr.Error())
				continue
			}
			return nil, err
		}
		return snap, nil
	}
}
