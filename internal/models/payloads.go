package models

// StageName identifies one of the asynchronous pipeline stages. Ingest is not
// listed: it runs synchronously inside the submit request and only triggers
// the first StageName.
type StageName string

const (
	StageExtract   StageName = "extract"
	StageClassify  StageName = "classify"
	StageSummarize StageName = "summarize"
)

// StagePayload is the envelope passed between pipeline stages. Each stage
// forwards a denormalized copy of the fields its successor needs so the
// successor can usually avoid a record store read. Only DocumentID is
// mandatory; a receiver falls back to re-reading the record when the rest is
// missing.
type StagePayload struct {
	DocumentID     string    `json:"documentId"`
	BlobRef        string    `json:"blobRef,omitempty"`
	MediaType      MediaType `json:"mediaType,omitempty"`
	ExtractedData  string    `json:"extractedData,omitempty"`
	Classification string    `json:"classification,omitempty"`
}

// FillFrom copies any field the payload is missing from the stored record.
// Fields already present in the payload win, so a forwarded copy is never
// clobbered by a re-read.
func (p *StagePayload) FillFrom(rec *DocumentRecord) {
	if p.BlobRef == "" {
		p.BlobRef = rec.BlobRef
	}
	if p.MediaType == "" {
		p.MediaType = rec.MediaType
	}
	if p.ExtractedData == "" {
		p.ExtractedData = rec.ExtractedData
	}
	if p.Classification == "" {
		p.Classification = rec.Classification
	}
}

// SubmitRequest is the client-facing body of the submit endpoint.
type SubmitRequest struct {
	FileName          string `json:"fileName"`
	FileContentBase64 string `json:"fileContent"`
	MediaType         string `json:"fileType"`
}

// SubmitResponse acknowledges a successful submission. Clients use the
// document id to poll for results.
type SubmitResponse struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
}

// ListResponse wraps the full-scan result of the query service.
type ListResponse struct {
	Documents []*DocumentRecord `json:"documents"`
}
