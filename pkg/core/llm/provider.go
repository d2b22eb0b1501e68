package llm

import (
	"context"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// GenerateStream yields the response incrementally. The channel is closed
	// when generation finishes; providers without native streaming deliver
	// the full response as a single chunk.
	GenerateStream(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (<-chan string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// singleShotStream adapts a blocking generate call into the streaming shape.
func singleShotStream(ctx context.Context, p Provider, prompt, systemPrompt string, options map[string]interface{}) (<-chan string, error) {
	out := make(chan string, 1)
	go func() {
		defer close(out)
		text, err := p.GenerateResponse(ctx, prompt, systemPrompt, options)
		if err != nil {
			return
		}
		select {
		case out <- text:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// temperatureOption reads an optional temperature override, defaulting to def.
func temperatureOption(options map[string]interface{}, def float64) float64 {
	if val, ok := options["temperature"].(float64); ok && val > 0 {
		return val
	}
	return def
}

type OpenAIProvider struct{}

func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	// OpenAI specific API call logic
	return "Not implemented: OpenAI Response", nil
}

func (p *OpenAIProvider) GenerateStream(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (<-chan string, error) {
	return singleShotStream(ctx, p, prompt, systemPrompt, options)
}

func (p *OpenAIProvider) AdaptInstructions(raw string) string {
	return "OpenAI Style: " + raw // Template for GPT-specific prompting
}

type KimiProvider struct{}

func (p *KimiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	return "Not implemented: Kimi Response", nil
}

func (p *KimiProvider) GenerateStream(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (<-chan string, error) {
	return singleShotStream(ctx, p, prompt, systemPrompt, options)
}

func (p *KimiProvider) AdaptInstructions(raw string) string {
	return "Kimi Style: " + raw // Kimi is optimized for long-context analysis
}
