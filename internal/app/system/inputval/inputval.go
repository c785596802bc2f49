// Package inputval validates decoded request bodies with waffle/pantry/validate
// struct tags and turns the first failure into an apperror validation error.
//
//	var in createProjectInput
//	if err := jsonutil.Decode(r, &in); err != nil { ... }
//	if res := inputval.Validate(in); res.HasErrors() {
//	    jsonutil.WriteError(w, r, log, res.Err())
//	    return
//	}
//
// Field names in errors follow the json tag; messages use the label tag.
package inputval

import (
	"net/mail"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/validate"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string // json name
	Message string
}

// Result collects the failures of one Validate call.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// Err returns the first failure as an apperror validation error, or nil.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return apperror.ValidationFailed(r.Errors[0].Field, r.Errors[0].Message)
}

// Fields maps each failed field to its message.
func (r *Result) Fields() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

// rule is a DevCanvas-specific string rule. An empty value passes unless the
// rule says otherwise; combine with "required" to forbid empty.
type rule struct {
	name       string
	check      func(string) bool
	allowEmpty bool
	message    string // appended to the label
}

var rules = []rule{
	{"visibility", func(s string) bool { return models.IsValidVisibility(normalizeEnum(s)) }, true, " must be one of: public, private."},
	{"theme", IsValidTheme, true, " must be one of: light, dark, system."},
	{"httpurl", IsValidHTTPURL, false, " must be a valid URL starting with http:// or https://."},
	{"objectid", IsValidObjectID, false, " is not a valid ID."},
}

var (
	validator     *validate.Validator
	validatorOnce sync.Once
)

func getValidator() *validate.Validator {
	validatorOnce.Do(func() {
		validator = validate.New(validate.WithStopOnFirstError())
		for _, rl := range rules {
			rl := rl
			validator.RegisterRuleFunc(rl.name, func(value any) bool {
				s, ok := value.(string)
				if !ok {
					return false
				}
				if s == "" && rl.allowEmpty {
					return true
				}
				return rl.check(s)
			}, rl.name)
		}
	})
	return validator
}

// Validate checks s (a struct or pointer to one) against its validate tags.
//
// Built-in rules come from pantry/validate (required, email, oneof, min,
// max). The package adds visibility, theme, httpurl and objectid.
func Validate(s any) *Result {
	result := &Result{}

	err := getValidator().Struct(s)
	if err == nil {
		return result
	}

	errs, ok := err.(validate.Errors)
	if !ok {
		return result
	}
	labels := fieldLabels(s)
	for _, e := range errs {
		label := labels[e.Field]
		if label == "" {
			label = e.Field
		}
		result.Errors = append(result.Errors, FieldError{
			Field:   e.Field,
			Message: message(label, e.Rule, e.Param),
		})
	}
	return result
}

// fieldLabels maps json field names to their label tag.
func fieldLabels(s any) map[string]string {
	labels := make(map[string]string)

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return labels
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
			name = tag
		}
		if label := f.Tag.Get("label"); label != "" {
			labels[name] = label
		}
	}
	return labels
}

func message(label, ruleName, param string) string {
	switch ruleName {
	case "required":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "oneof", "enum":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	}
	for _, rl := range rules {
		if rl.name == ruleName {
			return label + rl.message
		}
	}
	return label + " is invalid."
}

// IsValidEmail reports whether email is a bare RFC 5322 address
// ("Name <a@b>" forms are rejected).
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// IsValidTheme reports whether theme (any case) is a known preference.
func IsValidTheme(theme string) bool {
	switch normalizeEnum(theme) {
	case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
		return true
	}
	return false
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsValidHTTPURL reports whether s parses as an http or https URL with a host.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID reports whether s is a MongoDB ObjectID hex string.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
