package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidLLMNames lists known LLM backend names. Used by [Validate] to warn
// about unrecognised names.
var ValidLLMNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.LLM.Primary.Name == "" {
		errs = append(errs, errors.New("providers.llm.primary.name is required"))
	} else {
		validateLLMName("providers.llm.primary", cfg.Providers.LLM.Primary.Name)
	}
	for i, fb := range cfg.Providers.LLM.Fallbacks {
		prefix := fmt.Sprintf("providers.llm.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			validateLLMName(prefix, fb.Name)
		}
	}

	if cfg.Providers.Calendar.Timeout < 0 {
		errs = append(errs, fmt.Errorf("providers.calendar.timeout %s must not be negative", cfg.Providers.Calendar.Timeout))
	}

	if oa := cfg.Providers.Token.OAuth; oa != nil {
		if oa.ClientID == "" {
			errs = append(errs, errors.New("providers.token.oauth.client_id is required"))
		}
		if oa.ClientSecret == "" {
			errs = append(errs, errors.New("providers.token.oauth.client_secret is required"))
		}
		if oa.RefreshToken == "" {
			errs = append(errs, errors.New("providers.token.oauth.refresh_token is required"))
		}
		if cfg.Providers.Token.AccessToken != "" {
			slog.Warn("providers.token.access_token is ignored because oauth is configured")
		}
	} else if cfg.Providers.Token.AccessToken == "" {
		slog.Warn("no calendar token configured; calendar operations will ask the user to connect their calendar")
	}

	if cfg.Assistant.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("assistant.cache.ttl %s must not be negative", cfg.Assistant.Cache.TTL))
	}
	if cfg.Assistant.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("assistant.cache.capacity %d must not be negative", cfg.Assistant.Cache.Capacity))
	}

	if cfg.Notes.PostgresDSN == "" {
		slog.Warn("notes.postgres_dsn is empty; session notes will be kept in memory only")
	}

	return errors.Join(errs...)
}

// validateLLMName logs a warning if name is not in [ValidLLMNames].
func validateLLMName(prefix, name string) {
	if slices.Contains(ValidLLMNames, name) {
		return
	}
	slog.Warn("unknown LLM backend name, may be a typo",
		"field", prefix+".name",
		"name", name,
		"known", ValidLLMNames,
	)
}
