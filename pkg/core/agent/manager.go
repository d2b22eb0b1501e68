package agent

import (
	"context"
	"fmt"

	"strategy_arena/pkg/core/llm"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// Manager routes agent prompt executions to the configured LLM provider,
// honoring per-agent-type overrides.
type Manager struct {
	config    Config
	providers map[string]llm.Provider
}

func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		providers: map[string]llm.Provider{
			"openai":        &llm.OpenAIProvider{},
			"gemini":        &llm.GeminiProvider{},
			"gemini-direct": &llm.GeminiDirectProvider{},
			"deepseek":      &llm.DeepSeekProvider{},
			"qwen":          &llm.QwenProvider{},
			"kimi":          &llm.KimiProvider{},
		},
	}
}

func (m *Manager) GetProvider(agentType string) llm.Provider {
	// 1. Agent-specific override
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p
		}
	}

	// 2. Direct provider name (callers may route by provider instead of
	// agent type)
	if p, ok := m.providers[agentType]; ok {
		return p
	}

	// 3. Global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}

	// 4. Fallback
	return m.providers["deepseek"]
}

// GetProviderByName retrieves a provider instance by its registry name.
func (m *Manager) GetProviderByName(name string) llm.Provider {
	if p, ok := m.providers[name]; ok {
		return p
	}
	return nil
}

// ExecutePrompt adapts instructions for the resolved provider and runs the
// prompt to completion.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(agentType)
	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, m.withModel(agentType, options))
}

// ExecuteStream is the streaming variant; chunks arrive on the returned
// channel, which closes when generation ends.
func (m *Manager) ExecuteStream(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (<-chan string, error) {
	provider := m.GetProvider(agentType)
	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateStream(ctx, rawPrompt, adaptedSystemPrompt, m.withModel(agentType, options))
}

// withModel injects the configured per-agent model into the options map.
func (m *Manager) withModel(agentType string, options map[string]interface{}) map[string]interface{} {
	agentConfig, ok := m.config.Agents[agentType]
	if !ok || agentConfig.Model == "" {
		return options
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	if _, exists := options["model"]; !exists {
		options["model"] = agentConfig.Model
	}
	return options
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	return nil
}

func (m *Manager) GetActiveProvider() string {
	return m.config.ActiveProvider
}
