package register

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/fomu/core"
)

// password policy
var (
	pwdMinLen     = 8
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimText = "password cannot be similar to your name, email or phone"

	pwdMismatchText = "passwords do not match"
)

// checkPassword applies the password policy to the provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no similarity with name, email or phone
func checkPassword(values map[string]string, pwd string) error {
	reportErr := func(text string) error {
		return core.NewFieldError("password", text)
	}

	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	// - minLen: 8
	pwdLen := len(pwd)
	if pwdLen < pwdMinLen {
		return reportErr(pwdMinLenText)
	}
	for _, char := range []rune(pwd) {
		// - no whitespace
		if unicode.IsSpace(char) {
			return reportErr(pwdNoSpaceText)
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		return reportErr(pwdNotAllNumText)
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return reportErr(pwdComplexityText)
	}

	// - no similarity with the other account attributes
	getRatio := func(pass, attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(attr, "")).QuickRatio()
	}
	if getRatio(pwd, values["name"]) >= pwdMaxSim ||
		getRatio(pwd, values["email"]) >= pwdMaxSim ||
		getRatio(pwd, values["phone"]) >= pwdMaxSim {
		return reportErr(pwdAttrSimText)
	}
	return nil
}

// checkPasswordConfirm requires the confirmation to match the password as
// currently typed.
func checkPasswordConfirm(values map[string]string, confirm string) error {
	if confirm != values["password"] {
		return core.NewFieldError("password_confirm", pwdMismatchText)
	}
	return nil
}
