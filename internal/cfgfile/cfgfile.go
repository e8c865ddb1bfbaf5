// Package cfgfile loads agent and provider definitions from YAML sidecar
// files. The core engine never parses config itself; it only accepts
// already-built agent.Identity and provider.Config values, which this
// package produces.
package cfgfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/framegraph/framegraph/internal/agent"
	"github.com/framegraph/framegraph/internal/provider"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// agentFile is the on-disk YAML shape of one agent configuration file.
// The filename stem must equal AgentID.
type agentFile struct {
	AgentID         string            `yaml:"agent_id"`
	Role            string            `yaml:"role"`
	SystemPrompt    string            `yaml:"system_prompt"`
	SystemPromptPath string           `yaml:"system_prompt_path"`
	Metadata        map[string]string `yaml:"metadata"`
}

// providerFile is the on-disk YAML shape of one provider configuration
// file. provider_name defaults to the filename stem when unset.
type providerFile struct {
	ProviderName   string   `yaml:"provider_name"`
	ProviderType   string   `yaml:"provider_type"`
	Model          string   `yaml:"model"`
	APIKey         string   `yaml:"api_key"`
	Endpoint       string   `yaml:"endpoint"`
	DefaultOptions struct {
		Temperature *float64 `yaml:"temperature"`
		TopP        *float64 `yaml:"top_p"`
		MaxTokens   *int     `yaml:"max_tokens"`
	} `yaml:"default_options"`
}

// LoadAgents reads every *.yaml file in dir into registry. A file that
// fails to parse or validate is skipped with a logged error; loading
// continues for the rest.
func LoadAgents(dir string, registry *agent.Registry, promptBaseDir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		identity, err := loadOneAgent(path, stem, promptBaseDir)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping invalid agent config")
			continue
		}
		registry.Register(identity)
	}
	return nil
}

func loadOneAgent(path, stem, promptBaseDir string) (*agent.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var af agentFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if af.AgentID == "" {
		af.AgentID = stem
	}
	if af.AgentID != stem {
		return nil, fmt.Errorf("agent_id %q does not match filename %q", af.AgentID, stem)
	}

	var role agent.Role
	switch strings.ToLower(af.Role) {
	case "reader", "":
		role = agent.RoleReader
	case "writer", "synthesis":
		role = agent.RoleWriter
	default:
		return nil, fmt.Errorf("unknown role %q", af.Role)
	}

	identity := agent.New(af.AgentID, role)
	for k, v := range af.Metadata {
		identity.Metadata[k] = v
	}

	if role == agent.RoleWriter {
		systemPrompt := af.SystemPrompt
		if systemPrompt == "" && af.SystemPromptPath != "" {
			resolved, err := ResolvePromptPath(af.SystemPromptPath, promptBaseDir)
			if err != nil {
				return nil, err
			}
			content, err := NewPromptCache().Load(resolved)
			if err != nil {
				return nil, err
			}
			systemPrompt = content
		}
		if systemPrompt == "" {
			return nil, fmt.Errorf("writer agent %q requires system_prompt or system_prompt_path", af.AgentID)
		}
		identity.Metadata["system_prompt"] = systemPrompt

		if identity.Metadata["user_prompt_file"] == "" {
			return nil, fmt.Errorf("writer agent %q missing user_prompt_file template", af.AgentID)
		}
		if identity.Metadata["user_prompt_directory"] == "" {
			return nil, fmt.Errorf("writer agent %q missing user_prompt_directory template", af.AgentID)
		}
	}

	return identity, nil
}

// LoadProviders reads every *.yaml file in dir into a name -> Config map.
// A file that fails to parse or validate is skipped with a logged error.
func LoadProviders(dir string) (map[string]*provider.Config, error) {
	out := make(map[string]*provider.Config)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		cfg, err := loadOneProvider(path, stem)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping invalid provider config")
			continue
		}
		out[cfg.ProviderName] = cfg
	}
	return out, nil
}

func loadOneProvider(path, stem string) (*provider.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf providerFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if pf.ProviderName == "" {
		pf.ProviderName = stem
	}

	var providerType provider.Type
	switch strings.ToLower(pf.ProviderType) {
	case "openai":
		providerType = provider.TypeOpenAI
	case "anthropic":
		providerType = provider.TypeAnthropic
	case "ollama":
		providerType = provider.TypeOllama
	case "local":
		providerType = provider.TypeLocalCustom
	default:
		return nil, fmt.Errorf("unknown provider_type %q", pf.ProviderType)
	}

	cfg := &provider.Config{
		ProviderName: pf.ProviderName,
		ProviderType: providerType,
		Model:        pf.Model,
		APIKey:       pf.APIKey,
		Endpoint:     pf.Endpoint,
		DefaultOptions: provider.CompletionOptions{
			Temperature: pf.DefaultOptions.Temperature,
			TopP:        pf.DefaultOptions.TopP,
			MaxTokens:   pf.DefaultOptions.MaxTokens,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// ConfigHome returns $XDG_CONFIG_HOME/<app> if set, else $HOME/.config/<app>.
func ConfigHome(app string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, app), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", app), nil
}

// DataHome returns $XDG_DATA_HOME/<app> if set, else $HOME/.local/share/<app>,
// the default workspace data layout root.
func DataHome(app string) (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, app), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", app), nil
}
