package inference

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const defaultVertexModel = "gemini-1.5-pro"

// VertexModel implements Model on top of Vertex AI's Gemini API.
type VertexModel struct {
	client    *genai.Client
	modelName string
}

// NewVertexModel creates the Vertex AI backend. An empty modelName selects
// the default Gemini model.
func NewVertexModel(ctx context.Context, projectID, region, modelName string) (*VertexModel, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = defaultVertexModel
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexModel{client: client, modelName: modelName}, nil
}

func (m *VertexModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func (m *VertexModel) Infer(ctx context.Context, instruction string, attachments []Attachment, maxTokens int) (string, error) {
	// GenerativeModel handles are cheap; a fresh one per call keeps the
	// per-stage token limits from racing each other.
	model := m.client.GenerativeModel(m.modelName)
	if maxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(maxTokens))
	}

	parts := make([]genai.Part, 0, len(attachments)+1)
	for _, a := range attachments {
		parts = append(parts, genai.Blob{
			MIMEType: string(a.MediaType),
			Data:     a.Data,
		})
	}
	parts = append(parts, genai.Text(instruction))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return collectText(resp), nil
}

// collectText concatenates every text part of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
