// Package testutil hosts the fake academia upstream the app and API tests
// run against.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// APIKey is the key the fake academia upstream accepts.
const APIKey = "test-api-key"

type (
	// Entity is a record served by the fake academia API.
	Entity struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ParentID string `json:"parentId,omitempty"`
	}

	// GeneratedCode records an otp/generate call.
	GeneratedCode struct {
		Identifier string `json:"identifier"`
		Type       string `json:"type"`
		Purpose    string `json:"purpose"`
	}

	verifyBody struct {
		Identifier string `json:"identifier"`
		OTP        string `json:"otp"`
		Purpose    string `json:"purpose"`
	}

	envelope struct {
		Success bool        `json:"success"`
		Message string      `json:"message,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}
)

// Academia fakes the school-administration API: entity lists, OTP challenges
// and registration routes.
type Academia struct {
	srv *httptest.Server

	mu          sync.Mutex
	lists       map[string][]Entity
	code        string
	down        bool
	generated   []GeneratedCode
	verifyCalls int
	rejects     map[string]string              // route -> rejection message
	submissions map[string][]map[string]string // route -> accepted payloads
}

func NewAcademia(t *testing.T) *Academia {
	a := &Academia{
		lists:       RegistrationLists(),
		code:        "123456",
		rejects:     make(map[string]string),
		submissions: make(map[string][]map[string]string),
	}
	a.srv = httptest.NewServer(http.HandlerFunc(a.handle))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *Academia) URL() string { return a.srv.URL }

// Code returns the one-time code every open challenge expects.
func (a *Academia) Code() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.code
}

func (a *Academia) SetLists(lists map[string][]Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists = lists
}

// SetDown makes every call fail until the upstream "comes back".
func (a *Academia) SetDown(down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down = down
}

// Reject makes the given route turn requests down with message; an empty
// message clears the rejection. otp/generate may be rejected too.
func (a *Academia) Reject(route, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if message == "" {
		delete(a.rejects, route)
		return
	}
	a.rejects[route] = message
}

func (a *Academia) Generated() []GeneratedCode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]GeneratedCode(nil), a.generated...)
}

// VerifyCalls counts the otp/verify requests that reached the upstream.
func (a *Academia) VerifyCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifyCalls
}

func (a *Academia) Submissions(route string) []map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]string(nil), a.submissions[route]...)
}

func (a *Academia) handle(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.down {
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "academia is down"})
		return
	}
	if r.Header.Get("X-Api-Key") != APIKey {
		writeEnvelope(w, http.StatusUnauthorized, envelope{Message: "invalid api key"})
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPost && path == "otp/generate":
		if msg, ok := a.rejects[path]; ok {
			writeEnvelope(w, http.StatusUnprocessableEntity, envelope{Message: msg})
			return
		}
		var body GeneratedCode
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.generated = append(a.generated, body)
		writeEnvelope(w, http.StatusOK, envelope{Success: true})

	case r.Method == http.MethodPost && path == "otp/verify":
		var body verifyBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.verifyCalls++
		if body.OTP != a.code {
			writeEnvelope(w, http.StatusBadRequest, envelope{Message: "incorrect otp"})
			return
		}
		writeEnvelope(w, http.StatusOK, envelope{Success: true})

	case r.Method == http.MethodGet:
		entities, ok := a.lists[path]
		if !ok {
			writeEnvelope(w, http.StatusNotFound, envelope{Message: "unknown entity " + path})
			return
		}
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: filterEntities(entities, r.URL.Query())})

	case r.Method == http.MethodPost:
		if msg, ok := a.rejects[path]; ok {
			writeEnvelope(w, http.StatusUnprocessableEntity, envelope{Message: msg})
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		a.submissions[path] = append(a.submissions[path], payload)
		writeEnvelope(w, http.StatusOK, envelope{Success: true})

	default:
		writeEnvelope(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed"})
	}
}

// filterEntities keeps entities whose parent matches any filter value.
// Fixtures key children on their primary parent; secondary filter params
// simply never collide with it.
func filterEntities(entities []Entity, query url.Values) []Entity {
	if len(query) == 0 {
		return entities
	}
	matched := make([]Entity, 0, len(entities))
next:
	for _, e := range entities {
		for _, vals := range query {
			for _, v := range vals {
				if e.ParentID == v {
					matched = append(matched, e)
					continue next
				}
			}
		}
	}
	return matched
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// RegistrationLists is the standard academics tree: two colleges, courses
// under each, years under courses, sections under years, regulations under
// courses, plus the staff placement lists.
func RegistrationLists() map[string][]Entity {
	return map[string][]Entity{
		"colleges": {
			{ID: "clg-A", Name: "College of Engineering"},
			{ID: "clg-B", Name: "College of Medicine"},
		},
		"courses": {
			{ID: "crs-1", Name: "Computer Science", ParentID: "clg-A"},
			{ID: "crs-2", Name: "Mechanical Engineering", ParentID: "clg-A"},
			{ID: "crs-9", Name: "General Surgery", ParentID: "clg-B"},
		},
		"academic-years": {
			{ID: "yr-1", Name: "First Year", ParentID: "crs-1"},
			{ID: "yr-2", Name: "Second Year", ParentID: "crs-1"},
			{ID: "yr-8", Name: "First Year", ParentID: "crs-9"},
		},
		"sections": {
			{ID: "sec-1", Name: "Section A", ParentID: "yr-2"},
			{ID: "sec-2", Name: "Section B", ParentID: "yr-2"},
			{ID: "sec-9", Name: "Section A", ParentID: "yr-8"},
		},
		"regulations": {
			{ID: "reg-1", Name: "R2024", ParentID: "crs-1"},
			{ID: "reg-9", Name: "R2023", ParentID: "crs-9"},
		},
		"departments": {
			{ID: "dep-1", Name: "Computer Science Engineering", ParentID: "clg-A"},
			{ID: "dep-2", Name: "Anatomy", ParentID: "clg-B"},
		},
		"designations": {
			{ID: "des-1", Name: "Professor"},
			{ID: "des-2", Name: "Head of Department"},
		},
	}
}

// AssignmentLists is the curriculum tree the subject assignment wizard walks:
// course type -> course -> department -> semester -> subject.
func AssignmentLists() map[string][]Entity {
	return map[string][]Entity{
		"course-types": {
			{ID: "ct-ug", Name: "Undergraduate"},
			{ID: "ct-pg", Name: "Postgraduate"},
		},
		"courses": {
			{ID: "crs-1", Name: "Computer Science", ParentID: "ct-ug"},
			{ID: "crs-7", Name: "Data Science", ParentID: "ct-pg"},
		},
		"departments": {
			{ID: "dep-1", Name: "Computer Science Engineering", ParentID: "crs-1"},
			{ID: "dep-7", Name: "Mathematics", ParentID: "crs-7"},
		},
		"semesters": {
			{ID: "sem-3", Name: "Semester III", ParentID: "dep-1"},
			{ID: "sem-4", Name: "Semester IV", ParentID: "dep-1"},
		},
		"subjects": {
			{ID: "sub-1", Name: "Operating Systems", ParentID: "sem-4"},
			{ID: "sub-2", Name: "Database Systems", ParentID: "sem-4"},
		},
	}
}
