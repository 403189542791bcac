package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	slugRegex  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)
	scopeRegex = regexp.MustCompile(`^(\*|tenants|deployments|domains):(\*|read|write)$`)
)

func init() {
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
	// api_scope is resource:action over the API's resources.
	validate.RegisterValidation("api_scope", func(fl validator.FieldLevel) bool {
		return scopeRegex.MatchString(fl.Field().String())
	})
	// custom_hostname is a lower-case FQDN with at least two labels that is
	// not a bare IP address.
	validate.RegisterValidation("custom_hostname", func(fl validator.FieldLevel) bool {
		host := fl.Field().String()
		if host != strings.ToLower(host) || strings.HasPrefix(host, "www.") {
			return false
		}
		return validate.Var(host, "fqdn") == nil && validate.Var(host, "ip") != nil
	})
}

// normalizer is implemented by requests that canonicalise their fields
// before validation.
type normalizer interface {
	Normalize()
}

// Validate checks v's validate tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if n, ok := v.(normalizer); ok {
		n.Normalize()
	}
	return Validate(v)
}

// DecodeOptional is Decode for endpoints whose body may be omitted.
func DecodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return validate.Struct(v)
	}
	return Decode(r, v)
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
