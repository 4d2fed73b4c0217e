package tests

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/fomu/core/form"
	"github.com/trezcool/fomu/core/mapping"
	"github.com/trezcool/fomu/core/register"
	testutil "github.com/trezcool/fomu/tests"
)

func Test_formApi_query(t *testing.T) {
	app, _ := setup(t)

	signup := register.Student().Info()
	staff := register.Staff().Info()
	assignment := mapping.SubjectAssignment().Info()

	tests := []httpTest{
		{name: "Anonymous callers see the public forms", wantData: marchallList(t, signup)},
		{name: "A bad token is rejected", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "Students see the public forms", token: studentToken(t), wantData: marchallList(t, signup)},
		{name: "Teachers also see the mapping wizards", token: teacherToken(t), wantData: marchallList(t, signup, assignment)},
		{name: "Admins see everything", token: adminToken(t), wantData: marchallList(t, signup, staff, assignment)},
	}
	for _, tt := range tests {
		tt := tt
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/forms", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_formApi_retrieve(t *testing.T) {
	app, _ := setup(t)

	tests := []httpTest{
		{name: "Unknown form", path: "/v1/forms/nope", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "form not found"})},
		{name: "Gated form hidden from anonymous callers", path: "/v1/forms/staff-signup", wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "form access restricted"})},
		{name: "Gated form hidden from students", path: "/v1/forms/staff-signup", token: studentToken(t), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "form access restricted"})},
		{name: "Public form described", path: "/v1/forms/signup", wantCode: http.StatusOK,
			wantData: marchallObj(t, register.Student().Info())},
		{name: "Gated form described for admins", path: "/v1/forms/staff-signup", token: adminToken(t), wantCode: http.StatusOK,
			wantData: marchallObj(t, register.Staff().Info())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_formApi_open(t *testing.T) {
	app, _ := setup(t)

	tests := []httpTest{
		{name: "Unknown form", path: "/v1/forms/nope/sessions", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "form not found"})},
		{name: "Anonymous callers cannot open a gated form", path: "/v1/forms/staff-signup/sessions", wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "form access restricted"})},
		{name: "Students cannot open a gated form", path: "/v1/forms/staff-signup/sessions", token: studentToken(t), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "form access restricted"})},
		{name: "Students cannot open the mapping wizard", path: "/v1/forms/subject-assignment/sessions", token: studentToken(t), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "form access restricted"})},
		{name: "Anyone opens the public form", path: "/v1/forms/signup/sessions", wantCode: http.StatusCreated, extra: "signup"},
		{name: "Admins open the staff form", path: "/v1/forms/staff-signup/sessions", token: adminToken(t), wantCode: http.StatusCreated, extra: "staff-signup"},
		{name: "Teachers open the mapping wizard", path: "/v1/forms/subject-assignment/sessions", token: teacherToken(t), wantCode: http.StatusCreated, extra: "subject-assignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token)
			app.ServeHTTP(rec, req)

			if tt.wantCode != http.StatusCreated {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var snap form.Snapshot
			if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
				t.Fatalf("json.Unmarshal() failed: %v", err)
			}
			if snap.ID == "" {
				t.Error("snapshot has no session id")
			}
			if want := tt.extra.(string); snap.Form != want {
				t.Errorf("form = %q; want %q", snap.Form, want)
			}
			if snap.Step != 0 || snap.Submitted {
				t.Errorf("fresh session: step = %d, submitted = %v", snap.Step, snap.Submitted)
			}
			if len(snap.Steps) != 2 {
				t.Errorf("steps = %d; want 2", len(snap.Steps))
			}
		})
	}
}

func Test_formApi_setField(t *testing.T) {
	app, _ := setup(t)
	sid := openSession(t, app, "signup", "").ID
	fieldPath := func(field string) string { return "/v1/sessions/" + sid + "/fields/" + field }

	tests := []httpTest{
		{name: "Unknown session", path: "/v1/sessions/" + uuid.New().String() + "/fields/name", body: valueBody(t, "Jane"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "session not found"})},
		{name: "Unknown field", path: fieldPath("nickname"), body: valueBody(t, "jd"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "field not found"})},
		{name: "A select needs its options loaded first", path: fieldPath("college"), body: valueBody(t, "clg-A"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "load the field options first"})},
		{name: "Invalid email reported on its field", path: fieldPath("email"), body: valueBody(t, "not-an-email"),
			wantCode: http.StatusBadRequest, extra: "email"},
		{name: "Short name reported on its field", path: fieldPath("name"), body: valueBody(t, "J"),
			wantCode: http.StatusBadRequest, extra: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPut, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if field, ok := tt.extra.(string); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var fldErrs map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if _, ok := fldErrs[field]; !ok {
					t.Errorf("failed! data = %v; want a %q error", rec.Body.String(), field)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("A valid value lands trimmed in the snapshot", func(t *testing.T) {
		var snap form.Snapshot
		doJSON(t, app, http.MethodPut, fieldPath("name"), "", valueBody(t, "  Jane Doe "), http.StatusOK, &snap)
		if got := snapField(t, snap, "name").Value; got != "Jane Doe" {
			t.Errorf("name = %q; want %q", got, "Jane Doe")
		}
	})

	t.Run("A blank value clears the field", func(t *testing.T) {
		var snap form.Snapshot
		doJSON(t, app, http.MethodPut, fieldPath("name"), "", valueBody(t, ""), http.StatusOK, &snap)
		if got := snapField(t, snap, "name").Value; got != "" {
			t.Errorf("name = %q; want cleared", got)
		}
	})
}

func Test_formApi_fieldOptions(t *testing.T) {
	app, _ := setup(t)
	sid := openSession(t, app, "signup", "").ID
	base := "/v1/sessions/" + sid

	setField := func(field, value string) form.Snapshot {
		t.Helper()
		var snap form.Snapshot
		doJSON(t, app, http.MethodPut, base+"/fields/"+field, "", valueBody(t, value), http.StatusOK, &snap)
		return snap
	}
	options := func(field string) []string {
		t.Helper()
		var opts []form.Option
		doJSON(t, app, http.MethodGet, base+"/fields/"+field+"/options", "", nil, http.StatusOK, &opts)
		ids := make([]string, 0, len(opts))
		for _, o := range opts {
			ids = append(ids, o.ID)
		}
		return ids
	}

	t.Run("A text field has no options", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, base+"/fields/name/options")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "field has no options"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("A child cannot fetch before its parent is picked", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, base+"/fields/course/options")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"course": "select college first"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("The chain narrows parent by parent", func(t *testing.T) {
		if got := options("college"); !reflect.DeepEqual(got, []string{"clg-A", "clg-B"}) {
			t.Fatalf("college options = %v", got)
		}
		setField("college", "clg-A")
		if got := options("course"); !reflect.DeepEqual(got, []string{"crs-1", "crs-2"}) {
			t.Fatalf("course options = %v", got)
		}
		setField("course", "crs-1")
		if got := options("academic_year"); !reflect.DeepEqual(got, []string{"yr-1", "yr-2"}) {
			t.Fatalf("academic_year options = %v", got)
		}
		setField("academic_year", "yr-2")
		if got := options("section"); !reflect.DeepEqual(got, []string{"sec-1", "sec-2"}) {
			t.Fatalf("section options = %v", got)
		}
		setField("section", "sec-1")
		if got := options("regulation"); !reflect.DeepEqual(got, []string{"reg-1"}) {
			t.Fatalf("regulation options = %v", got)
		}
		setField("regulation", "reg-1")
	})

	t.Run("Changing a parent clears every descendant", func(t *testing.T) {
		snap := setField("college", "clg-B")
		for _, name := range []string{"course", "academic_year", "section", "regulation"} {
			if got := snapField(t, snap, name).Value; got != "" {
				t.Errorf("%s = %q after the college changed; want cleared", name, got)
			}
		}
		for _, name := range []string{"academic_year", "section", "regulation"} {
			if !snapField(t, snap, name).Disabled {
				t.Errorf("%s still enabled; want disabled until its parent is picked", name)
			}
		}
		if snapField(t, snap, "course").Disabled {
			t.Error("course disabled; want selectable under the new college")
		}
	})

	t.Run("The child list follows the new parent", func(t *testing.T) {
		if got := options("course"); !reflect.DeepEqual(got, []string{"crs-9"}) {
			t.Errorf("course options under clg-B = %v; want [crs-9]", got)
		}
	})
}

func Test_formApi_verification(t *testing.T) {
	app, academia := setup(t)
	sid := openSession(t, app, "signup", "").ID
	base := "/v1/sessions/" + sid

	now := time.Now()
	restore := form.NowFunc
	form.NowFunc = func() time.Time { return now }
	defer func() { form.NowFunc = restore }()

	t.Run("Only verifiable fields take a code", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, base+"/verifications/name")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "field cannot be verified"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("The field needs a value first", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, base+"/verifications/email")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "this field is required"})}
		checkCodeAndData(t, tt, rec)
	})

	doJSON(t, app, http.MethodPut, base+"/fields/email", "", valueBody(t, "jane@school.cd"), http.StatusOK, nil)

	t.Run("Confirming before requesting", func(t *testing.T) {
		req, rec := newRequest(http.MethodPut, base+"/verifications/email", codeBody(t, "123456"))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "request a verification code first"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("The code goes out through academia", func(t *testing.T) {
		var snap form.Snapshot
		doJSON(t, app, http.MethodPost, base+"/verifications/email", "", nil, http.StatusOK, &snap)
		want := []testutil.GeneratedCode{{Identifier: "jane@school.cd", Type: "email", Purpose: "signup"}}
		if got := academia.Generated(); !reflect.DeepEqual(got, want) {
			t.Errorf("generated = %v; want %v", got, want)
		}
		if got := snapField(t, snap, "email").AttemptsLeft; got != 3 {
			t.Errorf("attemptsLeft = %d; want 3", got)
		}
	})

	t.Run("Resending inside the cooldown window", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, base+"/verifications/email")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, httpErr{Error: "a verification code was just sent, retry in 60s"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("A malformed code never reaches academia", func(t *testing.T) {
		req, rec := newRequest(http.MethodPut, base+"/verifications/email", codeBody(t, "12ab"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
		var fldErrs map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if _, ok := fldErrs["code"]; !ok {
			t.Errorf("failed! data = %v; want a %q error", rec.Body.String(), "code")
		}
		if calls := academia.VerifyCalls(); calls != 0 {
			t.Errorf("verify calls = %d; want 0", calls)
		}
	})

	t.Run("Wrong codes burn the attempts", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			req, rec := newRequest(http.MethodPut, base+"/verifications/email", codeBody(t, "000000"))
			app.ServeHTTP(rec, req)
			tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "incorrect verification code"})}
			checkCodeAndData(t, tt, rec)
		}
	})

	t.Run("The exhausted challenge rejects locally", func(t *testing.T) {
		req, rec := newRequest(http.MethodPut, base+"/verifications/email", codeBody(t, academia.Code()))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, httpErr{Error: "too many failed attempts, request a new code"})}
		checkCodeAndData(t, tt, rec)
		if calls := academia.VerifyCalls(); calls != 3 {
			t.Errorf("verify calls = %d; want 3", calls)
		}
	})

	t.Run("A new challenge after the window resets the attempts", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		var snap form.Snapshot
		doJSON(t, app, http.MethodPost, base+"/verifications/email", "", nil, http.StatusOK, &snap)
		if got := snapField(t, snap, "email").AttemptsLeft; got != 3 {
			t.Errorf("attemptsLeft = %d; want 3", got)
		}

		doJSON(t, app, http.MethodPut, base+"/verifications/email", "", codeBody(t, academia.Code()), http.StatusOK, &snap)
		if !snapField(t, snap, "email").Verified {
			t.Error("email not verified after the right code")
		}
	})

	t.Run("Confirming again stays verified without an upstream call", func(t *testing.T) {
		calls := academia.VerifyCalls()
		var snap form.Snapshot
		doJSON(t, app, http.MethodPut, base+"/verifications/email", "", codeBody(t, academia.Code()), http.StatusOK, &snap)
		if !snapField(t, snap, "email").Verified {
			t.Error("email no longer verified")
		}
		if got := academia.VerifyCalls(); got != calls {
			t.Errorf("verify calls = %d; want %d", got, calls)
		}
	})

	t.Run("Changing the value voids the verification", func(t *testing.T) {
		var snap form.Snapshot
		doJSON(t, app, http.MethodPut, base+"/fields/email", "", valueBody(t, "janet@school.cd"), http.StatusOK, &snap)
		if snapField(t, snap, "email").Verified {
			t.Error("email still verified after a change")
		}

		req, rec := newRequest(http.MethodPut, base+"/verifications/email", codeBody(t, academia.Code()))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "request a verification code first"})}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_formApi_wizard(t *testing.T) {
	app, academia := setup(t)
	sid := openSession(t, app, "signup", "").ID
	base := "/v1/sessions/" + sid

	setField := func(field, value string) {
		t.Helper()
		doJSON(t, app, http.MethodPut, base+"/fields/"+field, "", valueBody(t, value), http.StatusOK, nil)
	}
	loadOptions := func(field string) {
		t.Helper()
		doJSON(t, app, http.MethodGet, base+"/fields/"+field+"/options", "", nil, http.StatusOK, nil)
	}
	verify := func(field string) {
		t.Helper()
		doJSON(t, app, http.MethodPost, base+"/verifications/"+field, "", nil, http.StatusOK, nil)
		doJSON(t, app, http.MethodPut, base+"/verifications/"+field, "", codeBody(t, academia.Code()), http.StatusOK, nil)
	}

	// the gate names the first hole on the step
	req, rec := newRequest(http.MethodPost, base+"/next")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"name": "this field is required"})}, rec)

	// and submitting from the first step is refused outright
	req, rec = newRequest(http.MethodPost, base+"/submit")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "complete the remaining steps first"})}, rec)

	setField("name", "Jane Doe")
	setField("email", "jane@school.cd")
	setField("phone", "+243991234567")
	setField("password", "s3cret!Pwd")
	setField("password_confirm", "s3cret!Pwd")
	verify("email")
	verify("phone")

	var snap form.Snapshot
	doJSON(t, app, http.MethodPost, base+"/next", "", nil, http.StatusOK, &snap)
	if snap.Step != 1 {
		t.Fatalf("step after next = %d; want 1", snap.Step)
	}

	// going back never loses anything
	doJSON(t, app, http.MethodPost, base+"/back", "", nil, http.StatusOK, &snap)
	if snap.Step != 0 {
		t.Fatalf("step after back = %d; want 0", snap.Step)
	}
	if got := snapField(t, snap, "email").Value; got != "jane@school.cd" {
		t.Errorf("email after back = %q; want kept", got)
	}
	if !snapField(t, snap, "email").Verified {
		t.Error("email verification lost on back")
	}
	doJSON(t, app, http.MethodPost, base+"/next", "", nil, http.StatusOK, nil)

	loadOptions("college")
	setField("college", "clg-A")
	loadOptions("course")
	setField("course", "crs-1")
	loadOptions("academic_year")
	setField("academic_year", "yr-2")
	loadOptions("section")
	setField("section", "sec-1")
	loadOptions("regulation")
	setField("regulation", "reg-1")

	// no step past the last one
	req, rec = newRequest(http.MethodPost, base+"/next")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "already on the last step"})}, rec)

	doJSON(t, app, http.MethodPost, base+"/submit", "", nil, http.StatusOK, &snap)
	if !snap.Submitted {
		t.Fatal("snapshot not marked submitted")
	}

	// the payload reaches academia under the external names only
	subs := academia.Submissions("students/register")
	if len(subs) != 1 {
		t.Fatalf("submissions = %d; want 1", len(subs))
	}
	want := map[string]string{
		"name":          "Jane Doe",
		"email":         "jane@school.cd",
		"phone":         "+243991234567",
		"password":      "s3cret!Pwd",
		"collegeId":     "clg-A",
		"courseId":      "crs-1",
		"yearOfStudyId": "yr-2",
		"sectionId":     "sec-1",
		"regulationId":  "reg-1",
	}
	if !reflect.DeepEqual(subs[0], want) {
		t.Errorf("payload = %v; want %v", subs[0], want)
	}

	// a submitted session is read-only
	req, rec = newRequest(http.MethodPost, base+"/submit")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "form already submitted"})}, rec)

	req, rec = newRequest(http.MethodPut, base+"/fields/name", valueBody(t, "Janet Doe"))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "form already submitted"})}, rec)
}

func Test_formApi_submitUnverified(t *testing.T) {
	app, academia := setup(t)
	sid := fillSignup(t, app, academia)
	base := "/v1/sessions/" + sid

	// touching the email voids its verification
	var snap form.Snapshot
	doJSON(t, app, http.MethodPut, base+"/fields/email", "", valueBody(t, "janet@school.cd"), http.StatusOK, &snap)
	if snapField(t, snap, "email").Verified {
		t.Fatal("email still verified after a change")
	}

	// and submission now names it
	req, rec := newRequest(http.MethodPost, base+"/submit")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"email": "verify this field first"})}, rec)
	if subs := academia.Submissions("students/register"); len(subs) != 0 {
		t.Fatalf("submissions = %d; want none", len(subs))
	}

	// re-verifying unblocks it
	doJSON(t, app, http.MethodPost, base+"/verifications/email", "", nil, http.StatusOK, nil)
	doJSON(t, app, http.MethodPut, base+"/verifications/email", "", codeBody(t, academia.Code()), http.StatusOK, nil)
	doJSON(t, app, http.MethodPost, base+"/submit", "", nil, http.StatusOK, &snap)
	if !snap.Submitted {
		t.Fatal("snapshot not marked submitted")
	}
}

func Test_formApi_submitRejected(t *testing.T) {
	app, academia := setup(t)
	sid := fillSignup(t, app, academia)
	base := "/v1/sessions/" + sid

	academia.Reject("students/register", "registrations are closed for this academic year")

	req, rec := newRequest(http.MethodPost, base+"/submit")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnprocessableEntity,
		wantData: marchallObj(t, httpErr{Error: "registrations are closed for this academic year"})}, rec)

	// nothing is lost on a rejection
	var snap form.Snapshot
	doJSON(t, app, http.MethodGet, base, "", nil, http.StatusOK, &snap)
	if snap.Submitted {
		t.Fatal("session marked submitted after a rejection")
	}
	if got := snapField(t, snap, "section").Value; got != "sec-1" {
		t.Errorf("section = %q after a rejection; want kept", got)
	}
	if !snapField(t, snap, "email").Verified {
		t.Error("email verification lost on a rejection")
	}

	// the user retries once registrations reopen
	academia.Reject("students/register", "")
	doJSON(t, app, http.MethodPost, base+"/submit", "", nil, http.StatusOK, &snap)
	if !snap.Submitted {
		t.Fatal("snapshot not marked submitted")
	}
}

func Test_formApi_optionsUnavailable(t *testing.T) {
	app, academia := setup(t)
	sid := openSession(t, app, "signup", "").ID
	path := "/v1/sessions/" + sid + "/fields/college/options"

	academia.SetDown(true)
	req, rec := newRequest(http.MethodGet, path)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusServiceUnavailable, rec.Body.String())
	}
	var body struct {
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if body.Error != `options for "college" are unavailable right now` {
		t.Errorf("error = %q", body.Error)
	}
	if !body.Retryable {
		t.Error("response not marked retryable")
	}

	// the next try simply works
	academia.SetDown(false)
	var opts []form.Option
	doJSON(t, app, http.MethodGet, path, "", nil, http.StatusOK, &opts)
	if len(opts) != 2 {
		t.Errorf("options = %v; want both colleges", opts)
	}
}

func Test_formApi_assignmentWizard(t *testing.T) {
	app, academia := setup(t)
	academia.SetLists(testutil.AssignmentLists())

	token := teacherToken(t)
	sid := openSession(t, app, "subject-assignment", token).ID
	base := "/v1/sessions/" + sid

	setField := func(field, value string) {
		t.Helper()
		doJSON(t, app, http.MethodPut, base+"/fields/"+field, token, valueBody(t, value), http.StatusOK, nil)
	}
	options := func(field string) []string {
		t.Helper()
		var opts []form.Option
		doJSON(t, app, http.MethodGet, base+"/fields/"+field+"/options", token, nil, http.StatusOK, &opts)
		ids := make([]string, 0, len(opts))
		for _, o := range opts {
			ids = append(ids, o.ID)
		}
		return ids
	}

	if got := options("course_type"); !reflect.DeepEqual(got, []string{"ct-ug", "ct-pg"}) {
		t.Fatalf("course_type options = %v", got)
	}
	setField("course_type", "ct-ug")
	if got := options("course"); !reflect.DeepEqual(got, []string{"crs-1"}) {
		t.Fatalf("course options = %v", got)
	}
	setField("course", "crs-1")
	if got := options("department"); !reflect.DeepEqual(got, []string{"dep-1"}) {
		t.Fatalf("department options = %v", got)
	}
	setField("department", "dep-1")
	if got := options("semester"); !reflect.DeepEqual(got, []string{"sem-3", "sem-4"}) {
		t.Fatalf("semester options = %v", got)
	}
	setField("semester", "sem-4")

	doJSON(t, app, http.MethodPost, base+"/next", token, nil, http.StatusOK, nil)

	if got := options("subject"); !reflect.DeepEqual(got, []string{"sub-1", "sub-2"}) {
		t.Fatalf("subject options = %v", got)
	}
	setField("subject", "sub-1")

	var snap form.Snapshot
	doJSON(t, app, http.MethodPost, base+"/submit", token, nil, http.StatusOK, &snap)
	if !snap.Submitted {
		t.Fatal("snapshot not marked submitted")
	}

	subs := academia.Submissions("subjects/assign")
	if len(subs) != 1 {
		t.Fatalf("submissions = %d; want 1", len(subs))
	}
	want := map[string]string{
		"courseTypeId": "ct-ug",
		"courseId":     "crs-1",
		"departmentId": "dep-1",
		"semesterId":   "sem-4",
		"subjectId":    "sub-1",
	}
	if !reflect.DeepEqual(subs[0], want) {
		t.Errorf("payload = %v; want %v", subs[0], want)
	}
}

func Test_formApi_discard(t *testing.T) {
	app, _ := setup(t)
	sid := openSession(t, app, "signup", "").ID
	base := "/v1/sessions/" + sid

	req, rec := newRequest(http.MethodDelete, base)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}

	req, rec = newRequest(http.MethodGet, base)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "session not found"})}, rec)
}

// openSession starts a session on a form and returns its first snapshot.
func openSession(t *testing.T, app http.Handler, formName, token string) form.Snapshot {
	t.Helper()
	var snap form.Snapshot
	doJSON(t, app, http.MethodPost, "/v1/forms/"+formName+"/sessions", token, nil, http.StatusCreated, &snap)
	return snap
}

// fillSignup drives a fresh signup session to the brink of submission and
// returns its id.
func fillSignup(t *testing.T, app http.Handler, academia *testutil.Academia) string {
	t.Helper()
	sid := openSession(t, app, "signup", "").ID
	base := "/v1/sessions/" + sid

	setField := func(field, value string) {
		doJSON(t, app, http.MethodPut, base+"/fields/"+field, "", valueBody(t, value), http.StatusOK, nil)
	}
	loadOptions := func(field string) {
		doJSON(t, app, http.MethodGet, base+"/fields/"+field+"/options", "", nil, http.StatusOK, nil)
	}
	verify := func(field string) {
		doJSON(t, app, http.MethodPost, base+"/verifications/"+field, "", nil, http.StatusOK, nil)
		doJSON(t, app, http.MethodPut, base+"/verifications/"+field, "", codeBody(t, academia.Code()), http.StatusOK, nil)
	}

	setField("name", "Jane Doe")
	setField("email", "jane@school.cd")
	setField("phone", "+243991234567")
	setField("password", "s3cret!Pwd")
	setField("password_confirm", "s3cret!Pwd")
	verify("email")
	verify("phone")
	doJSON(t, app, http.MethodPost, base+"/next", "", nil, http.StatusOK, nil)

	loadOptions("college")
	setField("college", "clg-A")
	loadOptions("course")
	setField("course", "crs-1")
	loadOptions("academic_year")
	setField("academic_year", "yr-2")
	loadOptions("section")
	setField("section", "sec-1")
	loadOptions("regulation")
	setField("regulation", "reg-1")
	return sid
}
