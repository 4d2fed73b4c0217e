package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/fomu/apps/api/echo"
	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
	"github.com/trezcool/fomu/core/mapping"
	"github.com/trezcool/fomu/core/register"
	academiasvc "github.com/trezcool/fomu/services/academia"
	gocachestore "github.com/trezcool/fomu/storage/session/gocache"
	testutil "github.com/trezcool/fomu/tests"
)

const testSecretKey = "test-secret-key"

var errInvalidToken = httpErr{Error: "invalid or expired jwt"}

func setup(t *testing.T) (*echoapi.Server, *testutil.Academia) {
	academia := testutil.NewAcademia(t)
	conf := testConfig(academia.URL())

	logger := core.NopLogger{}
	client := academiasvc.NewClient(conf, logger)

	registry, err := form.NewRegistry(
		register.Student(),
		register.Staff(),
		mapping.SubjectAssignment(),
	)
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	formSvc := form.NewService(
		registry,
		gocachestore.NewSessionRepository(conf),
		form.NewCachedSource(client, conf),
		client,
		client,
		validate,
		translator,
		conf,
		logger,
	)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FormSvc:    formSvc,
		Validate:   validate,
		Translator: translator,
	})
	return app, academia
}

func testConfig(academiaURL string) *core.Config {
	return &core.Config{
		TestMode:  true,
		Env:       "TEST",
		AppName:   "Fomu",
		SecretKey: testSecretKey,
		Server: core.ServerConfig{
			APIHost:         "127.0.0.1:0",
			ShutdownTimeout: time.Second,
		},
		Academia: core.AcademiaConfig{
			BaseURL: academiaURL,
			APIKey:  testutil.APIKey,
			Timeout: time.Second,
		},
		Options:      core.OptionsConfig{TTL: time.Minute, CleanupInterval: time.Minute},
		Sessions:     core.SessionsConfig{TTL: time.Hour, CleanupInterval: time.Minute},
		Verification: core.VerificationConfig{MaxAttempts: 3, ResendCooldown: time.Minute},
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newClaims forges the claims academia would put in a portal token.
func newClaims(subject string) *echoapi.Claims {
	now := time.Now()
	return &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    "Academia",
			Subject:   subject,
			Audience:  "Fomu",
			ExpiresAt: now.Add(time.Hour).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
}

func getToken(t *testing.T, claims *echoapi.Claims) string {
	token, err := echoapi.GenerateToken(claims, testSecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func adminToken(t *testing.T) string {
	claims := newClaims("usr-admin")
	claims.Username = "principal"
	claims.Email = "principal@school.cd"
	claims.IsAdmin = true
	claims.Roles = []string{core.RoleAdminPrincipal}
	return getToken(t, claims)
}

func teacherToken(t *testing.T) string {
	claims := newClaims("usr-teacher")
	claims.Username = "teacher"
	claims.Email = "teacher@school.cd"
	claims.IsTeacher = true
	return getToken(t, claims)
}

func studentToken(t *testing.T) string {
	claims := newClaims("usr-student")
	claims.Username = "hero"
	claims.Email = "hero@school.cd"
	claims.IsStudent = true
	return getToken(t, claims)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// doJSON drives the app and decodes the response body into out when the
// status matches; on mismatch it fails fast with the body for context.
func doJSON(t *testing.T, app http.Handler, method, path, token string, body []byte, wantCode int, out interface{}) {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("%s %s: code = %d; want %d; body %s", method, path, rec.Code, wantCode, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: json.Unmarshal() failed: %v", method, path, err)
		}
	}
}

func snapField(t *testing.T, snap form.Snapshot, name string) form.FieldSnapshot {
	t.Helper()
	for _, step := range snap.Steps {
		for _, f := range step.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	t.Fatalf("snapField() failed: field %q not in snapshot", name)
	return form.FieldSnapshot{}
}

func valueBody(t *testing.T, value string) []byte {
	return marchallObj(t, echoapi.FieldValueRequest{Value: value})
}

func codeBody(t *testing.T, code string) []byte {
	return marchallObj(t, echoapi.VerificationCodeRequest{Code: code})
}
