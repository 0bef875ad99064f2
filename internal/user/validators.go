package user

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/abduss/grimoire/internal/security"
	"github.com/go-playground/validator/v10"
)

// Validation tags registered by RegisterValidators.
const (
	TagUsername = "username"
	TagPassword = "password_strength"
	TagName     = "person_name"
)

var (
	usernamePattern      = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	usernameEdgePattern  = regexp.MustCompile(`^[._-]|[._-]$`)
	usernameRunPattern   = regexp.MustCompile(`[._-]{2,}`)
	namePattern          = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s\-']+$`)
	nameSpacesPattern    = regexp.MustCompile(`\s{2,}`)
	nameEdgePattern      = regexp.MustCompile(`^[-']|[-']$`)
	passwordSpecials     = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
	sequentialDigitRuns  = []string{"012", "123", "234", "345", "456", "567", "678", "789", "890"}
	forbiddenUsernames   = []string{"admin", "root", "administrator", "system", "test", "null", "undefined", "anonymous", "guest", "user", "support", "help", "info", "contact", "service"}
	commonWeakPasswords  = []string{"password", "password123", "12345678", "qwerty123", "admin123", "letmein123", "welcome123", "monkey123", "dragon123", "master123", "shadow123", "abc12345"}
	errWeakPasswordShape = errors.New("password contains weak patterns (consecutive characters, sequential numbers/letters)")
)

// ValidateUsername trims and checks a username.
func ValidateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", errors.New("username cannot be empty or only whitespace")
	}
	if !usernamePattern.MatchString(username) {
		return "", errors.New("username can only contain letters, numbers, dots (.), underscores (_), and hyphens (-)")
	}
	if usernameEdgePattern.MatchString(username) {
		return "", errors.New("username cannot start or end with dots, underscores, or hyphens")
	}
	if usernameRunPattern.MatchString(username) {
		return "", errors.New("username cannot contain consecutive special characters")
	}
	lower := strings.ToLower(username)
	for _, forbidden := range forbiddenUsernames {
		if lower == forbidden {
			return "", fmt.Errorf("username %q is not allowed for security reasons", username)
		}
	}
	return username, nil
}

// ValidatePassword checks password strength. The password is returned unchanged.
func ValidatePassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty or only whitespace")
	}
	if len(password) > security.MaxPasswordLength {
		return "", fmt.Errorf("password cannot exceed %d bytes", security.MaxPasswordLength)
	}
	if isAllDigits(password) {
		return "", errors.New("password cannot be entirely numeric")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}
	switch {
	case !hasUpper:
		return "", errors.New("password must contain at least one uppercase letter")
	case !hasLower:
		return "", errors.New("password must contain at least one lowercase letter")
	case !hasDigit:
		return "", errors.New("password must contain at least one number")
	case !hasSpecial:
		return "", fmt.Errorf("password must contain at least one special character (%s)", passwordSpecials)
	}

	lower := strings.ToLower(password)
	if hasRepeatedRun(lower, 3) || hasSequence(lower) {
		return "", errWeakPasswordShape
	}
	for _, common := range commonWeakPasswords {
		if lower == common {
			return "", errors.New("password is too common and easily guessable")
		}
	}
	return password, nil
}

// ValidateName trims an optional display name. Blank names become nil.
func ValidateName(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	name := strings.TrimSpace(*raw)
	if name == "" {
		return nil, nil
	}
	if !namePattern.MatchString(name) {
		return nil, errors.New("name can only contain letters, spaces, hyphens, and apostrophes")
	}
	if nameSpacesPattern.MatchString(name) {
		return nil, errors.New("name cannot contain multiple consecutive spaces")
	}
	if nameEdgePattern.MatchString(name) {
		return nil, errors.New("name cannot start or end with hyphen or apostrophe")
	}
	return &name, nil
}

// RegisterValidators installs the username, password and name rules as
// struct tags on v.
func RegisterValidators(v *validator.Validate) error {
	rules := map[string]func(string) error{
		TagUsername: func(s string) error { _, err := ValidateUsername(s); return err },
		TagPassword: func(s string) error { _, err := ValidatePassword(s); return err },
		TagName:     func(s string) error { _, err := ValidateName(&s); return err },
	}
	for tag, rule := range rules {
		rule := rule
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			field := fl.Field()
			if field.Kind() == reflect.Pointer {
				if field.IsNil() {
					return true
				}
				field = field.Elem()
			}
			return rule(field.String()) == nil
		})
		if err != nil {
			return fmt.Errorf("register %s validation: %w", tag, err)
		}
	}
	return nil
}

// DescribeValidation turns binding errors into messages naming the broken rule.
func DescribeValidation(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		value := fmt.Sprint(fe.Value())
		if p, ok := fe.Value().(*string); ok && p != nil {
			value = *p
		}
		var ruleErr error
		switch fe.Tag() {
		case TagUsername:
			_, ruleErr = ValidateUsername(value)
		case TagPassword:
			_, ruleErr = ValidatePassword(value)
		case TagName:
			_, ruleErr = ValidateName(&value)
		}
		if ruleErr != nil {
			msgs = append(msgs, ruleErr.Error())
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func hasRepeatedRun(s string, n int) bool {
	runes := []rune(s)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}

func hasSequence(s string) bool {
	for _, seq := range sequentialDigitRuns {
		if strings.Contains(s, seq) {
			return true
		}
	}
	for c := 'a'; c <= 'x'; c++ {
		if strings.Contains(s, string([]rune{c, c + 1, c + 2})) {
			return true
		}
	}
	return false
}
