package form

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// SourceMock serves canned option lists keyed by entity. Calls and failures
// are observable so tests can assert fetch behavior.
type SourceMock struct {
	mu      sync.Mutex
	lists   map[string][]Option
	calls   map[string]int
	failing bool
}

var _ Source = (*SourceMock)(nil)

func NewSourceMock(lists map[string][]Option) *SourceMock {
	return &SourceMock{lists: lists, calls: make(map[string]int)}
}

func (src *SourceMock) FetchOptions(_ context.Context, entity string, params map[string]string) ([]Option, error) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.calls[entity]++
	if src.failing {
		return nil, errors.New("upstream unreachable")
	}
	opts, ok := src.lists[entity]
	if !ok {
		return nil, errors.Errorf("no such entity %q", entity)
	}
	// apply the same parent filtering the academia API would
	if len(params) == 0 {
		return opts, nil
	}
	filtered := make([]Option, 0, len(opts))
	for _, opt := range opts {
		for _, v := range params {
			if opt.ParentID == v {
				filtered = append(filtered, opt)
				break
			}
		}
	}
	return filtered, nil
}

func (src *SourceMock) Fail(failing bool) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.failing = failing
}

func (src *SourceMock) Calls(entity string) int {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.calls[entity]
}

// VerifierMock accepts a single canned code and counts upstream calls so
// tests can assert that exhausted challenges never reach the network.
type VerifierMock struct {
	mu         sync.Mutex
	Code       string
	generated  []CodeRequest
	checkCalls int
}

var _ Verifier = (*VerifierMock)(nil)

func NewVerifierMock(code string) *VerifierMock {
	return &VerifierMock{Code: code}
}

func (v *VerifierMock) GenerateCode(_ context.Context, req CodeRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generated = append(v.generated, req)
	return nil
}

func (v *VerifierMock) CheckCode(_ context.Context, req CodeCheck) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checkCalls++
	if req.Code != v.Code {
		return ErrCodeMismatch
	}
	return nil
}

func (v *VerifierMock) Generated() []CodeRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CodeRequest(nil), v.generated...)
}

func (v *VerifierMock) CheckCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.checkCalls
}

// SubmitterMock records payloads and rejects with Err when set.
type SubmitterMock struct {
	mu        sync.Mutex
	Err       error
	submitted []SubmittedForm
}

type SubmittedForm struct {
	Route   string
	Payload map[string]string
}

var _ Submitter = (*SubmitterMock)(nil)

func NewSubmitterMock() *SubmitterMock {
	return &SubmitterMock{}
}

func (sub *SubmitterMock) Submit(_ context.Context, route string, payload map[string]string) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.Err != nil {
		return sub.Err
	}
	sub.submitted = append(sub.submitted, SubmittedForm{Route: route, Payload: payload})
	return nil
}

func (sub *SubmitterMock) Submitted() []SubmittedForm {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return append([]SubmittedForm(nil), sub.submitted...)
}

func (sub *SubmitterMock) Reject(err error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.Err = err
}

// RepositoryMock keeps sessions in a plain map, without expiry.
type RepositoryMock struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

var _ Repository = (*RepositoryMock)(nil)

func NewRepositoryMock() *RepositoryMock {
	return &RepositoryMock{sessions: make(map[string]*Session)}
}

func (repo *RepositoryMock) SaveSession(_ context.Context, s *Session) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.sessions[s.ID()] = s
	return nil
}

func (repo *RepositoryMock) GetSession(_ context.Context, id string) (*Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	s, ok := repo.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (repo *RepositoryMock) DeleteSession(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.sessions, id)
	return nil
}
