// ABOUTME: In-memory upstream client for tests
// ABOUTME: Replays a canned event-stream body or returns a scripted rejection

package upstream

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/transcode"
)

// MockClient is a Client whose responses are scripted by the test.
type MockClient struct {
	mu sync.Mutex

	// OpenFunc, when set, replaces the default behavior entirely.
	OpenFunc func(ctx context.Context, history store.History) (Opened, error)

	// Body is replayed as the event stream when OpenFunc is nil.
	Body string
	// Reject, when non-nil, is returned instead of a stream.
	Reject *NotStreaming
	// Err is returned from Open when set.
	Err error

	requests []store.History
}

// NewMockClient returns a client that replays the given data payloads as
// event-stream frames, followed by the terminal marker.
func NewMockClient(fragments ...string) *MockClient {
	return &MockClient{Body: WorkersAIBody(fragments...)}
}

// WorkersAIBody renders fragments as a complete Workers AI event stream.
func WorkersAIBody(fragments ...string) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(`data: {"response":`)
		b.WriteString(jsonString(f))
		b.WriteString("}\n\n")
	}
	b.WriteString("data: " + transcode.DoneSentinel + "\n\n")
	return b.String()
}

// Open records history and returns the scripted outcome.
func (m *MockClient) Open(ctx context.Context, history store.History) (Opened, error) {
	m.mu.Lock()
	m.requests = append(m.requests, history.Clone())
	fn, body, reject, err := m.OpenFunc, m.Body, m.Reject, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, history)
	}
	if err != nil {
		return nil, err
	}
	if reject != nil {
		r := *reject
		return &r, nil
	}
	return &StreamOpened{
		Stream:  io.NopCloser(strings.NewReader(body)),
		Dialect: transcode.WorkersAI,
	}, nil
}

// Requests returns copies of every history submitted so far.
func (m *MockClient) Requests() []store.History {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.History, len(m.requests))
	copy(out, m.requests)
	return out
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
