package llm

import (
	"context"
)

// MockClient is a canned-response Client for tests.
type MockClient struct {
	Response string
	Err      error

	// LastRequest records the most recent request for assertions.
	LastRequest *CompletionRequest
	Calls       int
}

// Complete returns the canned response.
func (m *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	m.LastRequest = req
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return &CompletionResponse{
		Content:   m.Response,
		Model:     "mock",
		TokensIn:  len(req.Messages),
		TokensOut: 1,
	}, nil
}

// Name returns the provider name.
func (m *MockClient) Name() string {
	return "mock"
}

// Models returns available models.
func (m *MockClient) Models() []string {
	return []string{"mock"}
}
