package form

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core"
)

var (
	// errors
	ErrFormNotFound     = errors.New("form not found")
	ErrForbidden        = errors.New("form access restricted")
	ErrSessionNotFound  = errors.New("session not found")
	ErrFieldNotFound    = errors.New("field not found")
	ErrNotSelect        = errors.New("field has no options")
	ErrOptionsNotLoaded = errors.New("load the field options first")
	ErrLastStep         = errors.New("already on the last step")
	ErrStepsRemaining   = errors.New("complete the remaining steps first")
	ErrAlreadySubmitted = errors.New("form already submitted")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrNotVerifiable    = errors.New("field cannot be verified")
	ErrNoChallenge      = errors.New("request a verification code first")
	ErrTooManyAttempts  = errors.New("too many failed attempts, request a new code")
	ErrCodeMismatch     = errors.New("incorrect verification code")
)

var (
	requiredText   = "this field is required"
	notChoiceText  = "not a valid choice"
	unverifiedText = "verify this field first"
)

type (
	// Verifier generates and checks ownership codes for email/phone fields.
	// The academia API delivers the codes; we never see them.
	Verifier interface {
		GenerateCode(ctx context.Context, req CodeRequest) error
		// CheckCode returns ErrCodeMismatch when the code is wrong.
		CheckCode(ctx context.Context, req CodeCheck) error
	}

	CodeRequest struct {
		Recipient string
		Channel   string // email | phone
		Purpose   string
	}

	CodeCheck struct {
		Recipient string
		Code      string
		Purpose   string
	}

	// Submitter delivers a completed form's payload to the academia API.
	Submitter interface {
		Submit(ctx context.Context, route string, payload map[string]string) error
	}

	// Repository keeps live sessions between requests.
	Repository interface {
		SaveSession(ctx context.Context, s *Session) error
		// GetSession returns ErrSessionNotFound for unknown or expired ids.
		GetSession(ctx context.Context, id string) (*Session, error)
		DeleteSession(ctx context.Context, id string) error
	}

	Service struct {
		registry   *Registry
		repo       Repository
		source     Source
		verifier   Verifier
		submitter  Submitter
		validate   *validator.Validate
		translator ut.Translator
		conf       *core.Config
		logger     core.Logger
	}
)

func NewService(
	registry *Registry,
	repo Repository,
	source Source,
	verifier Verifier,
	submitter Submitter,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		registry:   registry,
		repo:       repo,
		source:     source,
		verifier:   verifier,
		submitter:  submitter,
		validate:   validate,
		translator: translator,
		conf:       conf,
		logger:     logger,
	}
}

// Forms lists the registered forms visible to the given roles.
func (svc *Service) Forms(roles ...string) []Info {
	return svc.registry.List(roles)
}

// FormInfo describes one registered form.
func (svc *Service) FormInfo(name string, roles ...string) (Info, error) {
	def, err := svc.registry.Get(name)
	if err != nil {
		return Info{}, err
	}
	if !def.AllowedFor(roles) {
		return Info{}, ErrForbidden
	}
	return def.Info(), nil
}

// Open starts a fresh session on a form.
func (svc *Service) Open(ctx context.Context, formName string, roles ...string) (*Snapshot, error) {
	def, err := svc.registry.Get(formName)
	if err != nil {
		return nil, err
	}
	if !def.AllowedFor(roles) {
		return nil, ErrForbidden
	}

	s := NewSession(def, svc.conf.Verification.MaxAttempts)
	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

func (svc *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Discard drops a session and everything typed into it.
func (svc *Service) Discard(ctx context.Context, id string) error {
	return svc.repo.DeleteSession(ctx, id)
}

// SetField validates and stores a value, then clears every dependent
// descendant the change invalidates, all before returning.
func (svc *Service) SetField(ctx context.Context, id, name, value string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	f, ok := s.def.Field(name)
	if !ok {
		return nil, ErrFieldNotFound
	}
	if f.Kind != KindPassword {
		value = core.CleanString(value)
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if err := svc.checkValue(s, f, value); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.set(f, value)
	s.mu.Unlock()

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

// checkValue applies kind rules, extra rules and the field's domain check.
// Blank values are always accepted; required-ness is a step-gate concern.
// s.mu must be held.
func (svc *Service) checkValue(s *Session, f Field, value string) error {
	if value == "" {
		return nil
	}

	switch f.Kind {
	case KindSelect:
		if !s.optionsLoaded(f) {
			return errors.Wrapf(ErrOptionsNotLoaded, "field %q", f.Name)
		}
		var found bool
		for _, opt := range s.filteredOptions(f) {
			if opt.ID == value {
				found = true
				break
			}
		}
		if !found {
			return core.NewFieldError(f.Name, notChoiceText)
		}
	case KindEmail:
		if err := svc.checkRules(f.Name, value, "email", f.Rules); err != nil {
			return err
		}
	case KindPhone:
		if err := svc.checkRules(f.Name, value, "e164", f.Rules); err != nil {
			return err
		}
	default:
		if err := svc.checkRules(f.Name, value, "", f.Rules); err != nil {
			return err
		}
	}

	if f.Check != nil {
		values := make(map[string]string, len(s.values))
		for k, v := range s.values {
			values[k] = v
		}
		if err := f.Check(values, value); err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) checkRules(name, value, kindRule, rules string) error {
	tag := kindRule
	if rules != "" {
		if tag != "" {
			tag += ","
		}
		tag += rules
	}
	if tag == "" {
		return nil
	}
	if err := svc.validate.Var(value, tag); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return core.NewFieldError(name, verrs[0].Translate(svc.translator))
		}
		return errors.Wrapf(err, "validating %q", name)
	}
	return nil
}

// stepError returns the first offending field error on a step, or nil when
// the step is complete. s.mu must be held.
func (svc *Service) stepError(s *Session, idx int) error {
	step := s.def.Steps()[idx]
	for _, name := range step.Fields {
		f, _ := s.def.Field(name)
		value := s.values[name]
		if value == "" {
			if f.Required {
				return core.NewFieldError(name, requiredText)
			}
			continue
		}
		if err := svc.checkValue(s, f, value); err != nil {
			return err
		}
	}
	return nil
}

// Next advances to the following step once every step so far is complete.
// A value blanked on an earlier step blocks advancement just like a hole on
// the current one; the session is left untouched and the first offending
// field is reported.
func (svc *Service) Next(ctx context.Context, id string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if s.step >= len(s.def.Steps())-1 {
		s.mu.Unlock()
		return nil, ErrLastStep
	}
	for i := 0; i <= s.step; i++ {
		if err := svc.stepError(s, i); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.step++
	s.updatedAt = NowFunc()
	s.mu.Unlock()

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

// Back returns to the previous step. It never fails a gate and never clears
// values; on the first step it is a no-op.
func (svc *Service) Back(ctx context.Context, id string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if s.step > 0 {
		s.step--
		s.updatedAt = NowFunc()
	}
	s.mu.Unlock()

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

// FieldOptions returns a select field's current choices, fetching them from
// the source when the session holds none for the current parent selections.
// Results that arrive after the parents changed are discarded.
func (svc *Service) FieldOptions(ctx context.Context, id, name string) ([]Option, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	f, ok := s.def.Field(name)
	if !ok {
		return nil, ErrFieldNotFound
	}
	if f.Kind != KindSelect {
		return nil, ErrNotSelect
	}

	s.mu.Lock()
	params, err := s.fetchParams(f)
	if err != nil {
		s.mu.Unlock()
		return nil, core.NewFieldError(f.Name, err.Error())
	}
	if s.optionsLoaded(f) {
		opts := s.filteredOptions(f)
		s.mu.Unlock()
		return opts, nil
	}
	s.mu.Unlock()

	fetched, err := svc.source.FetchOptions(ctx, f.Source, params)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("fetching %q options: %v", f.Source, err))
		return nil, &OptionsUnavailableError{Field: f.Name, Err: err}
	}

	s.mu.Lock()
	s.commitOptions(f, params, fetched)
	opts := s.filteredOptions(f)
	s.mu.Unlock()

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return opts, nil
}

// RequestVerification asks the academia API to send a one-time code to the
// field's current value. Requests inside the resend window are refused; a
// request after the window voids the previous challenge and its attempts.
func (svc *Service) RequestVerification(ctx context.Context, id, name string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	f, ok := s.def.Field(name)
	if !ok {
		return nil, ErrFieldNotFound
	}
	if !f.Verify {
		return nil, ErrNotVerifiable
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	value := s.values[name]
	if value == "" {
		s.mu.Unlock()
		return nil, core.NewFieldError(name, requiredText)
	}
	if vrf := s.verifs[name]; vrf != nil {
		if vrf.verified {
			s.mu.Unlock()
			return s.Snapshot(), nil
		}
		if remaining := svc.conf.Verification.ResendCooldown - NowFunc().Sub(vrf.requestedAt); remaining > 0 {
			s.mu.Unlock()
			return nil, &CooldownError{Remaining: remaining}
		}
	}
	s.mu.Unlock()

	req := CodeRequest{Recipient: value, Channel: channelFor(f.Kind), Purpose: s.def.Name()}
	if err := svc.verifier.GenerateCode(ctx, req); err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return nil, core.NewFieldError(name, ue.Message)
		}
		return nil, errors.Wrap(err, "requesting verification code")
	}

	s.mu.Lock()
	// the value may have moved while the code was being sent; a challenge for
	// the old value is worthless
	if s.values[name] == value && !s.submitted {
		s.verifs[name] = &verification{challengeID: uuid.New().String(), requestedAt: NowFunc()}
		s.updatedAt = NowFunc()
	}
	s.mu.Unlock()

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

// ConfirmVerification checks a one-time code against the active challenge.
// After MaxAttempts failures the challenge is dead and further codes are
// refused locally, without reaching upstream.
func (svc *Service) ConfirmVerification(ctx context.Context, id, name, code string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	f, ok := s.def.Field(name)
	if !ok {
		return nil, ErrFieldNotFound
	}
	if !f.Verify {
		return nil, ErrNotVerifiable
	}
	code = core.CleanString(code)
	if err := svc.checkRules("code", code, "", "required,len=6,numeric"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	vrf := s.verifs[name]
	if vrf == nil {
		s.mu.Unlock()
		return nil, ErrNoChallenge
	}
	if vrf.verified {
		s.mu.Unlock()
		return s.Snapshot(), nil
	}
	if vrf.attempts >= svc.conf.Verification.MaxAttempts {
		s.mu.Unlock()
		return nil, ErrTooManyAttempts
	}
	challengeID := vrf.challengeID
	recipient := s.values[name]
	s.mu.Unlock()

	checkErr := svc.verifier.CheckCode(ctx, CodeCheck{Recipient: recipient, Code: code, Purpose: s.def.Name()})

	s.mu.Lock()
	cur := s.verifs[name]
	if cur == nil || cur.challengeID != challengeID || s.values[name] != recipient {
		// superseded while the check was in flight
		s.mu.Unlock()
		return nil, ErrNoChallenge
	}
	switch {
	case checkErr == nil:
		cur.verified = true
		s.updatedAt = NowFunc()
		s.mu.Unlock()
	case errors.Cause(checkErr) == ErrCodeMismatch:
		cur.attempts++
		s.updatedAt = NowFunc()
		s.mu.Unlock()
		if err := svc.repo.SaveSession(ctx, s); err != nil {
			return nil, errors.Wrap(err, "saving session")
		}
		return nil, ErrCodeMismatch
	default:
		s.mu.Unlock()
		var ue *UpstreamError
		if errors.As(checkErr, &ue) {
			return nil, core.NewFieldError(name, ue.Message)
		}
		return nil, errors.Wrap(checkErr, "checking verification code")
	}

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

// Submit maps the session's values to their external names and delivers them.
// It refuses to run before the last step, with an incomplete step, or with an
// unverified field. A rejection or transport failure leaves every value,
// option list and verification in place.
func (svc *Service) Submit(ctx context.Context, id string) (*Snapshot, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if s.step < len(s.def.Steps())-1 {
		s.mu.Unlock()
		return nil, ErrStepsRemaining
	}
	for i := range s.def.Steps() {
		if err := svc.stepError(s, i); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	for _, f := range s.def.Fields() {
		if f.Verify && s.values[f.Name] != "" {
			if vrf := s.verifs[f.Name]; vrf == nil || !vrf.verified {
				s.mu.Unlock()
				return nil, core.NewFieldError(f.Name, unverifiedText)
			}
		}
	}
	payload := s.payload()
	s.inFlight = true
	s.mu.Unlock()

	submitErr := svc.submitter.Submit(ctx, s.def.SubmitRoute(), payload)

	s.mu.Lock()
	s.inFlight = false
	if submitErr == nil {
		s.submitted = true
		s.updatedAt = NowFunc()
	}
	s.mu.Unlock()

	if submitErr != nil {
		var se *SubmissionError
		if errors.As(submitErr, &se) {
			return nil, se
		}
		return nil, errors.Wrap(submitErr, "submitting form")
	}

	if err := svc.repo.SaveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s.Snapshot(), nil
}

func channelFor(kind FieldKind) string {
	if kind == KindPhone {
		return "phone"
	}
	return "email"
}
