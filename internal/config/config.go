// Package config holds the pipe's valves: the flat set of host-exposed
// options controlling the upstream Anthropic call. Values are resolved once
// at load time from defaults, an optional TOML file, and the environment;
// the resulting struct is passed by value into every call.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment lookup so ANTHROPIC_API_KEY resolves
// the api_key valve, ANTHROPIC_MAX_TOKENS resolves max_tokens, and so on.
const envPrefix = "ANTHROPIC_"

// Valves is the recognized configuration surface.
//
// APIKey carries no `required` tag on purpose: a missing key is checked at
// call time so it fails as a configuration error on the call path instead of
// preventing startup (the server can still serve health and model listings).
type Valves struct {
	// APIKey is the Anthropic API key forwarded in the x-api-key header.
	APIKey string `koanf:"api_key"`

	// APIVersion is sent as the anthropic-version header.
	APIVersion string `koanf:"api_version" validate:"required"`

	// MaxTokens is the default max_tokens when the caller supplies none.
	MaxTokens int64 `koanf:"max_tokens" validate:"gt=0"`

	// Temperature is the default sampling temperature, domain 0.0-1.0.
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=1"`

	// RequestTimeout bounds the whole buffered call and, for streams, the
	// wait for response headers. Distinct from ConnectionTimeout.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// ConnectionTimeout bounds the dial phase only.
	ConnectionTimeout time.Duration `koanf:"connection_timeout" validate:"gt=0"`

	// ListenAddr is the host-facing HTTP listen address.
	ListenAddr string `koanf:"listen_addr" validate:"required"`

	// BaseURL is the upstream API root, overridable for tests and gateways.
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

// Defaults mirror the original valve defaults (4096 tokens, temperature 1.0,
// 60s request / 3.05s connection timeouts, version 2023-06-01).
func Defaults() map[string]any {
	return map[string]any{
		"api_key":            "",
		"api_version":        "2023-06-01",
		"max_tokens":         int64(4096),
		"temperature":        1.0,
		"request_timeout":    60 * time.Second,
		"connection_timeout": 3050 * time.Millisecond,
		"listen_addr":        "127.0.0.1:4000",
		"base_url":           "https://api.anthropic.com",
	}
}

// Load resolves the valves. Layering, lowest precedence first:
// built-in defaults, the TOML file at path (if non-empty), ANTHROPIC_*
// environment variables.
func Load(path string) (Valves, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return Valves{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Valves{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
	if err != nil {
		return Valves{}, fmt.Errorf("load environment: %w", err)
	}

	var v Valves
	if err := k.Unmarshal("", &v); err != nil {
		return Valves{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(v); err != nil {
		return Valves{}, err
	}

	return v, nil
}

// validate rejects out-of-domain valves. Out-of-range values are errors, not
// clamped: silently adjusting a caller-visible option hides misconfiguration.
func validate(v Valves) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}

	fe := verrs[0]
	return fmt.Errorf("invalid config value for %s (%s=%v)",
		strings.ToLower(fe.Field()), fe.Tag(), fe.Value())
}
