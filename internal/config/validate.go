package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// ErrInvalidConfig is wrapped by every ValidationError.
var ErrInvalidConfig = errors.New("invalid config")

// ValidationError reports one rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Finalize normalizes fields that have more than one accepted spelling and resolves
// api_key_env into api_key when no key is set inline.
func (c *InferenceConfig) Finalize() {
	c.Engine = EngineType(strings.ToUpper(strings.TrimSpace(string(c.Engine))))
	if c.Engine == "" {
		c.Engine = EngineRemote
	}
	c.Model.ModelName = strings.TrimSpace(c.Model.ModelName)
	c.RemoteParams.APIURL = strings.TrimSpace(c.RemoteParams.APIURL)
	if c.RemoteParams.APIKey == "" && c.RemoteParams.APIKeyEnv != "" {
		c.RemoteParams.APIKey = os.Getenv(strings.TrimPrefix(c.RemoteParams.APIKeyEnv, "$"))
	}
}

// Validate checks the fields the inference engines depend on. All failures are joined;
// errors.As finds the first *ValidationError.
func (c *InferenceConfig) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.Model.ModelName == "" {
		fail("model.model_name", "must be set")
	}
	if c.Model.ModelMaxLength < 0 {
		fail("model.model_max_length", "must not be negative, got %d", c.Model.ModelMaxLength)
	}
	if c.Generation.MaxNewTokens <= 0 {
		fail("generation.max_new_tokens", "must be positive, got %d", c.Generation.MaxNewTokens)
	}
	if c.Generation.Temperature < 0 {
		fail("generation.temperature", "must not be negative, got %g", c.Generation.Temperature)
	}
	if c.Generation.TopP <= 0 || c.Generation.TopP > 1 {
		fail("generation.top_p", "must be in (0, 1], got %g", c.Generation.TopP)
	}
	if !slices.Contains(Engines, c.Engine) {
		fail("engine", "unknown engine %q", c.Engine)
	}
	if c.Engine == EngineRemote && c.RemoteParams.APIURL == "" {
		fail("remote_params.api_url", "must be set for the %s engine", EngineRemote)
	}
	if c.RemoteParams.NumWorkers < 1 {
		fail("remote_params.num_workers", "must be at least 1, got %d", c.RemoteParams.NumWorkers)
	}
	if c.RemoteParams.MaxRetries < 0 {
		fail("remote_params.max_retries", "must not be negative, got %d", c.RemoteParams.MaxRetries)
	}
	if c.RemoteParams.ConnectionTimeout <= 0 {
		fail("remote_params.connection_timeout", "must be positive, got %g", c.RemoteParams.ConnectionTimeout)
	}
	return errors.Join(errs...)
}
