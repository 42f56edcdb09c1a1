// Package inference wraps the text/vision model the pipeline stages call.
// The stages only see the Model contract; the Vertex AI backend is used in
// deployment and an OpenAI-compatible backend serves the local server.
package inference

import (
	"context"

	"github.com/docflowlabs/docproc/internal/models"
)

// Attachment is a binary document or image passed to the model alongside the
// instruction text.
type Attachment struct {
	MediaType models.MediaType
	Data      []byte
}

// Model is the opaque inference capability. Implementations return the
// model's text response; maxTokens is a hint for the response length, sized
// per stage.
type Model interface {
	Infer(ctx context.Context, instruction string, attachments []Attachment, maxTokens int) (string, error)
}
