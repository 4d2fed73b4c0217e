package form

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

var NowFunc = time.Now // mockable

type (
	// Session holds one user's progress through a form: field values, fetched
	// option lists, verification state and the current step. It lives in the
	// session store for the lifetime of the wizard and is never persisted.
	//
	// All state behind mu is only touched by Service methods; a session is
	// mutated by one goroutine at a time.
	Session struct {
		id          string
		def         *Definition
		maxAttempts int
		createdAt   time.Time

		mu        sync.Mutex
		values    map[string]string
		options   map[string][]Option          // as fetched, unfiltered
		optParams map[string]map[string]string // fetch params the options were committed under
		verifs    map[string]*verification
		step      int
		submitted bool
		inFlight  bool
		updatedAt time.Time
	}

	verification struct {
		challengeID string
		requestedAt time.Time
		attempts    int
		verified    bool
	}
)

// NewSession opens a fresh session on a definition. Service.Open is the
// normal entry point; repositories use this to build fixtures.
func NewSession(def *Definition, maxAttempts int) *Session {
	now := NowFunc()
	return &Session{
		id:          uuid.New().String(),
		def:         def,
		maxAttempts: maxAttempts,
		createdAt:   now,
		updatedAt:   now,
		values:      make(map[string]string),
		options:     make(map[string][]Option),
		optParams:   make(map[string]map[string]string),
		verifs:      make(map[string]*verification),
	}
}

func (s *Session) ID() string { return s.id }

// set stores a value and synchronously clears every dependent descendant
// invalidated by the change. mu must be held.
func (s *Session) set(f Field, value string) {
	old := s.values[f.Name]
	if value == "" {
		delete(s.values, f.Name)
	} else {
		s.values[f.Name] = value
	}
	if value != old {
		if f.Verify {
			// the previous proof no longer covers the new value
			delete(s.verifs, f.Name)
		}
		s.cascade(f.Name)
	}
	s.updatedAt = NowFunc()
}

// cascade drops descendants' stale option lists and clears their values.
// An option fetched under the previous parent selection cannot vouch for a
// stored value anymore. mu must be held.
func (s *Session) cascade(name string) {
	for _, child := range s.def.Children(name) {
		delete(s.options, child)
		delete(s.optParams, child)
		if s.values[child] != "" {
			delete(s.values, child)
			delete(s.verifs, child)
		}
		s.cascade(child)
	}
}

// fetchParams assembles the upstream query params for a field's options from
// its parents' selections, keyed by the parents' payload names. mu must be held.
func (s *Session) fetchParams(f Field) (map[string]string, error) {
	params := make(map[string]string, len(f.DependsOn))
	for _, parent := range f.DependsOn {
		v := s.values[parent]
		if v == "" {
			return nil, &parentNotSetError{field: f.Name, parent: parent}
		}
		pf, _ := s.def.Field(parent)
		params[payloadKey(pf)] = v
	}
	return params, nil
}

// commitOptions stores a fetched option list unless the parent selections
// changed while the fetch was in flight; superseded results are discarded.
// mu must be held.
func (s *Session) commitOptions(f Field, params map[string]string, opts []Option) bool {
	current, err := s.fetchParams(f)
	if err != nil || !paramsEqual(current, params) {
		return false
	}
	s.options[f.Name] = opts
	s.optParams[f.Name] = params
	s.updatedAt = NowFunc()
	return true
}

// optionsLoaded reports whether the field holds options fetched under its
// current parent selections. mu must be held.
func (s *Session) optionsLoaded(f Field) bool {
	params, ok := s.optParams[f.Name]
	if !ok {
		return false
	}
	current, err := s.fetchParams(f)
	return err == nil && paramsEqual(current, params)
}

// filteredOptions returns the field's current valid choices. mu must be held.
func (s *Session) filteredOptions(f Field) []Option {
	opts := s.options[f.Name]
	if len(f.DependsOn) == 0 {
		return opts
	}
	return FilterOptions(opts, s.values[f.DependsOn[0]])
}

// payload maps the session's values to their external names, in field
// declaration order semantics. Only the submission boundary sees these names.
// mu must be held.
func (s *Session) payload() map[string]string {
	payload := make(map[string]string, len(s.values))
	for _, f := range s.def.Fields() {
		key := payloadKey(f)
		if key == "" {
			continue
		}
		if v := s.values[f.Name]; v != "" {
			payload[key] = v
		}
	}
	return payload
}

func paramsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

type parentNotSetError struct {
	field  string
	parent string
}

func (e *parentNotSetError) Error() string {
	return "select " + e.parent + " first"
}

type (
	// Snapshot is an immutable copy of a session for rendering and transport.
	Snapshot struct {
		ID        string         `json:"id"`
		Form      string         `json:"form"`
		Title     string         `json:"title"`
		Step      int            `json:"step"`
		Submitted bool           `json:"submitted"`
		Steps     []StepSnapshot `json:"steps"`
		CreatedAt time.Time      `json:"createdAt"`
		UpdatedAt time.Time      `json:"updatedAt"`
	}

	StepSnapshot struct {
		Name   string          `json:"name"`
		Title  string          `json:"title"`
		Fields []FieldSnapshot `json:"fields"`
	}

	FieldSnapshot struct {
		Name     string    `json:"name"`
		Label    string    `json:"label"`
		Kind     FieldKind `json:"kind"`
		Required bool      `json:"required,omitempty"`
		Value    string    `json:"value,omitempty"`
		Filled   bool      `json:"filled,omitempty"` // passwords report presence only
		Verify   bool      `json:"verify,omitempty"`
		Verified bool      `json:"verified,omitempty"`
		// AttemptsLeft counts the confirmations left on the active challenge.
		AttemptsLeft int      `json:"attemptsLeft,omitempty"`
		Options      []Option `json:"options,omitempty"`
		// Disabled marks a select whose parent has not been chosen yet.
		Disabled bool `json:"disabled,omitempty"`
	}
)

// Snapshot captures the session's current state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		ID:        s.id,
		Form:      s.def.Name(),
		Title:     s.def.Title(),
		Step:      s.step,
		Submitted: s.submitted,
		Steps:     make([]StepSnapshot, 0, len(s.def.Steps())),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	for _, step := range s.def.Steps() {
		ss := StepSnapshot{Name: step.Name, Title: step.Title, Fields: make([]FieldSnapshot, 0, len(step.Fields))}
		for _, name := range step.Fields {
			f, _ := s.def.Field(name)
			fs := FieldSnapshot{
				Name:     f.Name,
				Label:    f.Label,
				Kind:     f.Kind,
				Required: f.Required,
				Verify:   f.Verify,
			}
			if v := s.values[name]; v != "" {
				if f.Kind == KindPassword {
					fs.Filled = true
				} else {
					fs.Value = v
				}
			}
			if vrf := s.verifs[name]; vrf != nil {
				fs.Verified = vrf.verified
				if !vrf.verified {
					if left := s.maxAttempts - vrf.attempts; left > 0 {
						fs.AttemptsLeft = left
					}
				}
			}
			if f.Kind == KindSelect {
				for _, parent := range f.DependsOn {
					if s.values[parent] == "" {
						fs.Disabled = true
						break
					}
				}
				if !fs.Disabled && s.optionsLoaded(f) {
					fs.Options = s.filteredOptions(f)
				}
			}
			ss.Fields = append(ss.Fields, fs)
		}
		snap.Steps = append(snap.Steps, ss)
	}
	return snap
}
