package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/danubesoft/ifn-gateway/internal/adapter/outbound/cel"
	"github.com/danubesoft/ifn-gateway/internal/domain/auth"
)

// RegisterCustomValidators registers the gateway-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("trust_policy", validateTrustPolicy); err != nil {
		return fmt.Errorf("failed to register trust_policy validator: %w", err)
	}
	if err := v.RegisterValidation("cel_expression", validateCELExpression); err != nil {
		return fmt.Errorf("failed to register cel_expression validator: %w", err)
	}
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateTrustPolicy accepts "system", "insecure", or a path-looking value
// (the CA bundle). Existence of the file is checked at startup, not here.
func validateTrustPolicy(fl validator.FieldLevel) bool {
	policy := fl.Field().String()
	if policy == "system" || policy == "insecure" {
		return true
	}
	return strings.ContainsAny(policy, "/\\.") // looks like a path
}

// validateCELExpression compiles the classifier expression.
func validateCELExpression(fl validator.FieldLevel) bool {
	return cel.ValidateExpression(fl.Field().String()) == nil
}

// validateDuration accepts time.ParseDuration syntax.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// API key hashes must parse into a ring; misformatted hashes surface at
	// startup rather than as silent authentication failures.
	if _, err := auth.NewKeyRing(c.Auth.APIKeys); err != nil {
		return fmt.Errorf("auth.api_keys: %w", err)
	}

	return nil
}

// BootstrapTimeoutDuration returns the parsed bootstrap timeout.
func (c *UpstreamConfig) BootstrapTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.BootstrapTimeout)
	if err != nil {
		return 0
	}
	return d
}

// RequestTimeoutDuration returns the parsed business request timeout.
func (c *UpstreamConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

// formatValidationErrors converts validator.ValidationErrors to actionable
// messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "trust_policy":
		return fmt.Sprintf("%s must be 'system', 'insecure', or a CA bundle path", field)
	case "cel_expression":
		return fmt.Sprintf("%s must be a valid CEL expression returning bool", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration like '30s'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
