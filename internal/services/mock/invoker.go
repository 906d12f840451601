package mock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"payment-terminal/internal/interfaces"
)

// MockInvoker answers settlement calls with canned raw frames. Used in
// standalone mode and in tests.
type MockInvoker struct {
	verbose bool

	mu       sync.Mutex
	requests []interfaces.RemoteRequest

	// Response overrides the canned frame when set. Err, when set, fails
	// the call instead.
	Response string
	Err      error
}

// NewMockInvoker creates the invoker.
func NewMockInvoker(verbose bool) *MockInvoker {
	return &MockInvoker{verbose: verbose}
}

func (m *MockInvoker) Invoke(_ context.Context, req interfaces.RemoteRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.verbose {
		log.Printf("[MOCK] Invoker: %s %s", req.Method, req.URL)
	}

	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}

	id := fmt.Sprintf("mock-%d", time.Now().UnixNano())
	return "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n" +
		fmt.Sprintf(`{"transaction_id":%q,"created_at":%q}`, id, time.Now().UTC().Format(time.RFC3339)), nil
}

// Requests returns the calls observed so far.
func (m *MockInvoker) Requests() []interfaces.RemoteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.RemoteRequest(nil), m.requests...)
}
