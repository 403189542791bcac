package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/sitepublish/internal/model"
)

var validate = validator.New()

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
}

// Config is everything a single publish attempt needs. It is built once per
// attempt and never modified while the pipeline runs.
type Config struct {
	DeploymentID    string      `json:"deployment_id" validate:"required"`
	TenantID        string      `json:"tenant_id" validate:"required"`
	TenantSlug      string      `json:"tenant_slug" validate:"required,slug"`
	Version         int         `json:"version" validate:"min=1"`
	Route           string      `json:"route" validate:"required,oneof=subdomain custom"`
	PrimaryHostname string      `json:"primary_hostname" validate:"required,fqdn"`
	Hostnames       []string    `json:"hostnames" validate:"min=1,dive,fqdn"`
	DNSRecords      []DNSRecord `json:"dns_records,omitempty" validate:"dive"`
	ArtifactRef     string      `json:"artifact_ref" validate:"required"`
	CommitMessage   string      `json:"commit_message" validate:"required"`
}

// RepositoryName is the name of the source repository that backs the tenant's site.
func (c Config) RepositoryName() string {
	return "site-" + c.TenantSlug
}

// SiteURL is the public URL the site is served on once the build is live.
func (c Config) SiteURL() string {
	return "https://" + c.PrimaryHostname
}

// Validate checks the config and returns a *ConfigValidationError describing
// the first problem found.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigValidationError{
				Field:  fe.Field(),
				Reason: describeTag(fe),
			}
		}
		return &ConfigValidationError{Reason: err.Error()}
	}
	if !slices.Contains(c.Hostnames, c.PrimaryHostname) {
		return &ConfigValidationError{Field: "primary_hostname", Reason: "must be one of the target hostnames"}
	}
	if c.Route == model.RouteCustom && len(c.DNSRecords) == 0 {
		return &ConfigValidationError{Field: "dns_records", Reason: "required for the custom route"}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "fqdn":
		return fmt.Sprintf("%q is not a valid hostname", fe.Value())
	case "slug":
		return fmt.Sprintf("%q is not a valid slug", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
