package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiDirectProvider talks to Gemini through the generative-ai-go client.
// It is the provider of choice for research-style calls where the search
// grounding hook matters more than the newer SDK surface.
type GeminiDirectProvider struct {
	Model string
}

var _ Provider = (*GeminiDirectProvider)(nil)

func (p *GeminiDirectProvider) newModel(ctx context.Context, systemPrompt string, options map[string]interface{}) (*genai.Client, *genai.GenerativeModel, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if val, ok := options["api_key"].(string); ok && val != "" {
		apiKey = val
	}
	if apiKey == "" {
		return nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}

	name := p.Model
	if name == "" {
		name = "gemini-2.0-flash"
	}
	if val, ok := options["model"].(string); ok && val != "" {
		name = val
	}

	model := client.GenerativeModel(name)
	model.SetTemperature(float32(temperatureOption(options, 0.7)))
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	return client, model, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func (p *GeminiDirectProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	client, model, err := p.newModel(ctx, systemPrompt, options)
	if err != nil {
		return "", err
	}
	defer client.Close()

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "I have nothing to add.", nil
	}
	return text, nil
}

func (p *GeminiDirectProvider) GenerateStream(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (<-chan string, error) {
	client, model, err := p.newModel(ctx, systemPrompt, options)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer client.Close()

		it := model.GenerateContentStream(ctx, genai.Text(prompt))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				return
			}
			chunk := responseText(resp)
			if chunk == "" {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *GeminiDirectProvider) AdaptInstructions(raw string) string {
	return raw
}
