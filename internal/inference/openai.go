package inference

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIModel implements Model against any OpenAI-compatible chat endpoint.
// It is the backend for the local server mode, where Vertex AI credentials
// are usually unavailable.
type OpenAIModel struct {
	client llms.Model
}

// NewOpenAIModel connects to an OpenAI-compatible endpoint. baseURL may point
// at a local service; token "none" works for services without auth.
func NewOpenAIModel(baseURL, token, modelName string) (*OpenAIModel, error) {
	if modelName == "" {
		return nil, fmt.Errorf("model name must be provided")
	}
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(modelName),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &OpenAIModel{client: client}, nil
}

func (m *OpenAIModel) Infer(ctx context.Context, instruction string, attachments []Attachment, maxTokens int) (string, error) {
	parts := make([]llms.ContentPart, 0, len(attachments)+1)
	for _, a := range attachments {
		parts = append(parts, llms.BinaryPart(string(a.MediaType), a.Data))
	}
	parts = append(parts, llms.TextPart(instruction))

	content := []llms.MessageContent{{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	}}

	var opts []llms.CallOption
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	resp, err := m.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Content, nil
}
