package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/catalog-reviews/internal/domain"
	"github.com/go-playground/validator/v10"
)

// reservedUsernames are path segments that cannot double as account names.
var reservedUsernames = []string{"me"}

// usernamePattern accepts Unicode letters and digits plus _ . @ + -.
// Whitespace and other separators are rejected.
var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+\-]+$`)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return Username(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})
}

// Struct validates the given struct using its validate tags.
// The first failing field is returned as a *domain.FieldError.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok || len(ve) == 0 {
			return err
		}
		fe := ve[0]
		return domain.NewFieldError(fe.Field(), message(fe))
	}
	return nil
}

// Username checks the account-name policy: 1-150 characters, restricted
// charset, and not a reserved word in any letter case.
func Username(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > domain.UsernameMaxLen {
		return domain.NewFieldError("username", fmt.Sprintf("must be between 1 and %d characters", domain.UsernameMaxLen))
	}
	for _, r := range reservedUsernames {
		if strings.EqualFold(name, r) {
			return domain.NewFieldError("username", fmt.Sprintf("%q cannot be used as a username", name))
		}
	}
	if !usernamePattern.MatchString(name) {
		return domain.NewFieldError("username", "may contain only letters, digits and _ . @ + - characters")
	}
	return nil
}

// Score checks that a review score is inside the allowed range.
func Score(score int) error {
	if score < domain.ScoreMin || score > domain.ScoreMax {
		return domain.NewFieldError("score", fmt.Sprintf("must be between %d and %d", domain.ScoreMin, domain.ScoreMax))
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max":
		return "ensure this field has no more than " + fe.Param() + " characters"
	case "min":
		return "ensure this field has at least " + fe.Param() + " characters"
	case "username":
		var f *domain.FieldError
		if errors.As(Username(fmt.Sprint(fe.Value())), &f) {
			return f.Message
		}
		return "invalid username"
	case "role":
		return "must be one of user, moderator, admin"
	}
	return fmt.Sprintf("failed '%s'", fe.Tag())
}
