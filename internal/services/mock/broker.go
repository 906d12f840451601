package mock

import (
	"log"
	"sync"
	"time"

	"payment-terminal/internal/interfaces"
)

// MockBroker is a SubscribeClient whose sessions deliver whatever a test (or
// nothing at all, in standalone mode) pushes into them.
type MockBroker struct {
	verbose bool

	mu       sync.Mutex
	sessions []*MockSession

	// SubscribeErr, when set, fails every Subscribe call.
	SubscribeErr error
}

// NewMockBroker creates the broker.
func NewMockBroker(verbose bool) *MockBroker {
	return &MockBroker{verbose: verbose}
}

func (b *MockBroker) Subscribe(broker, topic string, _ interfaces.CredentialPaths) (interfaces.SubscribeSession, error) {
	if b.SubscribeErr != nil {
		return nil, b.SubscribeErr
	}

	session := &MockSession{
		Topic:    topic,
		messages: make(chan interfaces.BrokerMessage, 16),
	}

	b.mu.Lock()
	b.sessions = append(b.sessions, session)
	b.mu.Unlock()

	if b.verbose {
		log.Printf("[MOCK] Broker: subscribed to %s on %s", topic, broker)
	}
	return session, nil
}

// Sessions returns the sessions opened so far.
func (b *MockBroker) Sessions() []*MockSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockSession(nil), b.sessions...)
}

// MockSession is an in-memory subscription session.
type MockSession struct {
	Topic string

	mu           sync.Mutex
	closed       bool
	unsubscribed []string
	messages     chan interfaces.BrokerMessage
	once         sync.Once
}

// Deliver pushes a payload to the listener as if the broker published it.
func (s *MockSession) Deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.messages <- interfaces.BrokerMessage{
		Topic:      s.Topic,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

func (s *MockSession) Messages() <-chan interfaces.BrokerMessage {
	return s.messages
}

func (s *MockSession) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, topic)
	return nil
}

// Unsubscribed reports the topics unsubscribe was called with.
func (s *MockSession) Unsubscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unsubscribed...)
}

// Close closes the session and its message channel. Idempotent.
func (s *MockSession) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.messages)
	})
}

// Closed reports whether the session was closed.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
