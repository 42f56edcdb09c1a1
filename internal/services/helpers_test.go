package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/docflowlabs/docproc/internal/inference"
	"github.com/docflowlabs/docproc/internal/models"
)

// fakeModel replays scripted responses in order.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []modelCall
}

type modelCall struct {
	instruction string
	attachments []inference.Attachment
	maxTokens   int
}

func (m *fakeModel) Infer(ctx context.Context, instruction string, attachments []inference.Attachment, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, modelCall{instruction: instruction, attachments: attachments, maxTokens: maxTokens})
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("no scripted response left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

// fakeBlobStore keeps blobs in a map.
type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (b *fakeBlobStore) Put(ctx context.Context, key string, data []byte, mediaType models.MediaType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if _, exists := b.blobs[key]; exists {
		return nil
	}
	b.blobs[key] = data
	return nil
}

func (b *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", key)
	}
	return data, nil
}

// recordingTrigger captures hand-offs instead of delivering them.
type recordingTrigger struct {
	mu       sync.Mutex
	fired    []models.StageName
	payloads []*models.StagePayload
	err      error
}

func (r *recordingTrigger) Trigger(ctx context.Context, stage models.StageName, payload *models.StagePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.fired = append(r.fired, stage)
	r.payloads = append(r.payloads, payload)
	return nil
}
