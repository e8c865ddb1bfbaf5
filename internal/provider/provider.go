// Package provider implements provider configuration, validation, and a
// stub client interface. Only configuration and validation live here;
// making network calls to a provider is left to the caller.
package provider

import (
	"net"
	"os"
	"strings"

	"github.com/framegraph/framegraph/internal/apperr"
)

// Type is the closed set of supported provider kinds.
type Type string

const (
	TypeOpenAI      Type = "openai"
	TypeAnthropic   Type = "anthropic"
	TypeOllama      Type = "ollama"
	TypeLocalCustom Type = "local"
)

// CompletionOptions holds default generation parameters for a provider.
type CompletionOptions struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Config is the validated shape of a provider configuration file entry.
type Config struct {
	ProviderName   string
	ProviderType   Type
	Model          string
	APIKey         string
	Endpoint       string
	DefaultOptions CompletionOptions
}

func endpointHasScheme(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

func inferEndpointScheme(providerType Type, endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if providerType == TypeLocalCustom && !endpointHasScheme(endpoint) {
		return "https://" + endpoint
	}
	return endpoint
}

// NormalizedEndpoint returns the endpoint with a scheme inferred for
// LocalCustom providers that omitted one, and "" if no endpoint is set.
func (c *Config) NormalizedEndpoint() string {
	if c.Endpoint == "" {
		return ""
	}
	return inferEndpointScheme(c.ProviderType, c.Endpoint)
}

// EndpointURLIsValid reports whether endpoint (after scheme inference for
// providerType) is a well-formed http(s) URL with a parseable host.
func EndpointURLIsValid(providerType Type, endpoint string) bool {
	endpoint = inferEndpointScheme(providerType, endpoint)
	if !endpointHasScheme(endpoint) {
		return false
	}

	_, rest, ok := strings.Cut(endpoint, "://")
	if !ok || rest == "" || strings.ContainsAny(rest, " \t\n\r") {
		return false
	}

	authority, _, _ := strings.Cut(rest, "/")
	if authority == "" {
		return false
	}

	hostPort := authority
	if idx := strings.LastIndex(authority, "@"); idx != -1 {
		hostPort = authority[idx+1:]
	}
	if hostPort == "" {
		return false
	}

	var host string
	if strings.HasPrefix(hostPort, "[") {
		end := strings.Index(hostPort, "]")
		if end == -1 {
			return false
		}
		host = hostPort[1:end]
	} else {
		host, _, _ = strings.Cut(hostPort, ":")
	}
	if host == "" {
		return false
	}

	if host == "localhost" || strings.Contains(host, ".") {
		return true
	}
	return net.ParseIP(host) != nil
}

// Validate checks the configuration's static invariants: a non-empty
// model, a well-formed endpoint if present, and in-range default
// completion options.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return apperr.New(apperr.CodeConfigError, "model name cannot be empty")
	}
	if c.Endpoint != "" && !EndpointURLIsValid(c.ProviderType, c.Endpoint) {
		return apperr.New(apperr.CodeConfigError, "invalid endpoint URL: "+c.Endpoint)
	}
	if c.DefaultOptions.Temperature != nil {
		t := *c.DefaultOptions.Temperature
		if t < 0.0 || t > 2.0 {
			return apperr.New(apperr.CodeConfigError, "temperature must be between 0.0 and 2.0")
		}
	}
	if c.DefaultOptions.TopP != nil {
		p := *c.DefaultOptions.TopP
		if p < 0.0 || p > 1.0 {
			return apperr.New(apperr.CodeConfigError, "top_p must be between 0.0 and 1.0")
		}
	}
	if c.DefaultOptions.MaxTokens != nil && *c.DefaultOptions.MaxTokens <= 0 {
		return apperr.New(apperr.CodeConfigError, "max_tokens must be greater than 0")
	}
	return nil
}

// resolvedAPIKey returns c.APIKey if set, else the provider-type-specific
// environment variable fallback (OpenAI/Anthropic only).
func (c *Config) resolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch c.ProviderType {
	case TypeOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case TypeAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// Resolve validates c and derives the concrete, ready-to-use provider
// identity: resolved API key (falling back to the provider's environment
// variable) and normalized endpoint. Returns CodeProviderNotConfigured if
// a required credential or endpoint is missing.
func (c *Config) Resolve() (ResolvedProvider, error) {
	if err := c.Validate(); err != nil {
		return ResolvedProvider{}, err
	}

	apiKey := c.resolvedAPIKey()

	switch c.ProviderType {
	case TypeOpenAI:
		if apiKey == "" {
			return ResolvedProvider{}, apperr.New(apperr.CodeProviderNotConfigured, "OpenAI API key required (set in config or OPENAI_API_KEY env var)")
		}
	case TypeAnthropic:
		if apiKey == "" {
			return ResolvedProvider{}, apperr.New(apperr.CodeProviderNotConfigured, "Anthropic API key required (set in config or ANTHROPIC_API_KEY env var)")
		}
	case TypeOllama:
		// No credential required.
	case TypeLocalCustom:
		if c.NormalizedEndpoint() == "" {
			return ResolvedProvider{}, apperr.New(apperr.CodeProviderNotConfigured, "local custom provider requires an endpoint")
		}
	}

	return ResolvedProvider{
		ProviderType: c.ProviderType,
		Model:        c.Model,
		APIKey:       apiKey,
		Endpoint:     c.NormalizedEndpoint(),
	}, nil
}

// ResolvedProvider is the validated, credential-and-endpoint-resolved form
// of a Config, ready to hand to a Client.
type ResolvedProvider struct {
	ProviderType Type
	Model        string
	APIKey       string
	Endpoint     string
}
