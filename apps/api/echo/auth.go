package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core"
)

var contextTokenKey = "userToken"

// Claims represents the authorization claims academia transmits via a JWT.
// Academia issues and signs the tokens; we only verify them.
type Claims struct {
	jwt.StandardClaims
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	IsStudent bool     `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher bool     `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin   bool     `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Roles     []string `json:"roles,omitempty"`
}

// newAppJWTConfig returns the JWT auth middleware config. Anonymous requests
// pass through so public forms stay reachable; a token, when present, must be
// valid.
func newAppJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		Skipper: func(ctx echo.Context) bool {
			return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
		},
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
// Production tokens come from academia; this signs compatible ones for local
// tooling and tests.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextRoles flattens the context claims into the role names form access is
// gated on. Anonymous callers have none.
func contextRoles(ctx echo.Context) []string {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil
	}
	roles := append([]string(nil), claims.Roles...)
	if claims.IsAdmin {
		roles = append(roles, core.RoleAdmin)
	}
	if claims.IsTeacher {
		roles = append(roles, core.RoleTeacher)
	}
	if claims.IsStudent {
		roles = append(roles, core.RoleStudent)
	}
	return roles
}
