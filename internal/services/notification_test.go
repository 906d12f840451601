package services

import (
	"context"
	"testing"
	"time"

	"payment-terminal/internal/api"
	"payment-terminal/internal/credentials"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/services/mock"
	"payment-terminal/internal/sessions"
	"payment-terminal/internal/storage"
)

const (
	testVATSK      = "1234567890"
	testPokladnica = "11111111111111111"
)

func newNotificationFixture(t *testing.T, window time.Duration) (*NotificationService, *mock.MockBroker, *storage.MemoryStorage, *sessions.Registry) {
	t.Helper()
	endpoints := testEndpoints()
	endpoints.ListenWindow = window

	broker := mock.NewMockBroker(false)
	store := storage.NewMemoryStorage(false)
	registry := sessions.NewRegistry()
	svc := NewNotificationService(broker, credentials.NewManager(t.TempDir(), false), store, registry, endpoints, false)
	return svc, broker, store, registry
}

func validSubscribeInput(transactionID string) SubscribeInput {
	return SubscribeInput{
		RawCert:       []byte(testCertPEM),
		RawKey:        []byte(testKeyPEM),
		RawCA:         []byte(testCAPEM),
		VATSK:         testVATSK,
		Pokladnica:    testPokladnica,
		TransactionID: transactionID,
		Mode:          interfaces.ModeTest,
	}
}

func waitForSession(t *testing.T, broker *mock.MockBroker, registry *sessions.Registry) *mock.MockSession {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sessions := broker.Sessions(); len(sessions) > 0 && registry.Len() > 0 {
			return sessions[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscription never became active")
	return nil
}

func TestTopicRoundTrip(t *testing.T) {
	topic := BuildTopic(testVATSK, testPokladnica, "tx-42")
	if topic != "VATSK-1234567890/POKLADNICA-11111111111111111/tx-42" {
		t.Fatalf("unexpected topic %q", topic)
	}

	vatsk, pokladnica, txID, err := ParseTopic(topic)
	if err != nil {
		t.Fatalf("ParseTopic: %v", err)
	}
	if vatsk != testVATSK || pokladnica != testPokladnica || txID != "tx-42" {
		t.Errorf("round trip mismatch: %s / %s / %s", vatsk, pokladnica, txID)
	}
}

func TestParseTopicRejectsMalformed(t *testing.T) {
	// Two segments, missing prefixes, wrong digit counts, empty id.
	bad := []string{
		"VATSK-1234567890/POKLADNICA-11111111111111111",
		"1234567890/POKLADNICA-11111111111111111/tx",
		"VATSK-123/POKLADNICA-11111111111111111/tx",
		"VATSK-1234567890/POKLADNICA-1111111111111111/tx",
		"VATSK-1234567890/POKLADNICA-11111111111111111/",
		"VATSK-1234567890/11111111111111111/tx",
	}
	for _, topic := range bad {
		if _, _, _, err := ParseTopic(topic); err == nil {
			t.Errorf("expected error for topic %q", topic)
		}
	}
}

func TestSubscribeValidation(t *testing.T) {
	svc, broker, _, _ := newNotificationFixture(t, time.Second)

	tests := []struct {
		name   string
		mutate func(*SubscribeInput)
	}{
		{"short vatsk", func(in *SubscribeInput) { in.VATSK = "123" }},
		{"non-numeric vatsk", func(in *SubscribeInput) { in.VATSK = "12345678ab" }},
		{"short pokladnica", func(in *SubscribeInput) { in.Pokladnica = "1111111111111111" }},
		{"empty transaction id", func(in *SubscribeInput) { in.TransactionID = "" }},
		{"slash in transaction id", func(in *SubscribeInput) { in.TransactionID = "a/b" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSubscribeInput("tx-1")
			tt.mutate(&in)
			_, err := svc.Subscribe(context.Background(), in)
			if err == nil {
				t.Fatal("expected an error")
			}
			if code := CodeOf(err); code != api.ErrorCodeValidation {
				t.Errorf("expected %s, got %s", api.ErrorCodeValidation, code)
			}
		})
	}

	if len(broker.Sessions()) != 0 {
		t.Errorf("validation failures must not reach the broker, saw %d sessions", len(broker.Sessions()))
	}
}

func TestSubscribeCollectsAndPersistsMessages(t *testing.T) {
	svc, broker, store, registry := newNotificationFixture(t, 400*time.Millisecond)

	type outcome struct {
		result *SubscribeResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := svc.Subscribe(context.Background(), validSubscribeInput("tx-7"))
		done <- outcome{result, err}
	}()

	session := waitForSession(t, broker, registry)
	session.Deliver([]byte(`{"transactionStatus":"ACSC","amount":10.5,"currency":"EUR","integrityHash":"deadbeef","endToEndId":"E2E-1","receivedAt":"2026-08-28T10:00:00Z"}`))
	session.Deliver([]byte("not json"))

	var out outcome
	select {
	case out = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Subscribe did not return after the listen window")
	}
	if out.err != nil {
		t.Fatalf("Subscribe: %v", out.err)
	}

	wantTopic := BuildTopic(testVATSK, testPokladnica, "tx-7")
	if out.result.Topic != wantTopic {
		t.Errorf("expected topic %q, got %q", wantTopic, out.result.Topic)
	}
	if len(out.result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out.result.Messages))
	}

	records, err := store.GetNotificationsByTransaction(context.Background(), "tx-7")
	if err != nil {
		t.Fatalf("GetNotificationsByTransaction: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(records))
	}

	structured := records[0]
	if structured.TransactionStatus == nil || *structured.TransactionStatus != "ACSC" {
		t.Errorf("expected status ACSC, got %v", structured.TransactionStatus)
	}
	if structured.Amount == nil || *structured.Amount != 1050 {
		t.Errorf("expected amount 1050 minor units, got %v", structured.Amount)
	}
	if structured.Currency == nil || *structured.Currency != "EUR" {
		t.Errorf("expected currency EUR, got %v", structured.Currency)
	}
	if structured.RemoteTimestamp == nil {
		t.Error("expected the remote timestamp to be parsed")
	}
	if structured.Topic != wantTopic || structured.VATSK != testVATSK {
		t.Errorf("correlation fields not filled: %q / %q", structured.Topic, structured.VATSK)
	}

	raw := records[1]
	if raw.RawPayload != "not json" {
		t.Errorf("expected the raw payload to be stored, got %q", raw.RawPayload)
	}
	if raw.TransactionStatus != nil {
		t.Errorf("undecodable payload must not produce derived fields, got %v", raw.TransactionStatus)
	}

	if !session.Closed() {
		t.Error("expected the session to be closed after the window")
	}
	if registry.Len() != 0 {
		t.Errorf("expected an empty registry after the window, got %d entries", registry.Len())
	}
}

func TestSubscribeRejectsDuplicateTransaction(t *testing.T) {
	svc, broker, _, registry := newNotificationFixture(t, time.Second)

	existing, err := broker.Subscribe("ssl://broker-test.example:8883", "t", interfaces.CredentialPaths{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !registry.Register("tx-dup", sessions.Entry{Topic: "t", Session: existing}) {
		t.Fatal("Register failed")
	}

	_, err = svc.Subscribe(context.Background(), validSubscribeInput("tx-dup"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := CodeOf(err); code != api.ErrorCodeValidation {
		t.Errorf("expected %s, got %s", api.ErrorCodeValidation, code)
	}

	// The losing session must not leak.
	brokerSessions := broker.Sessions()
	if len(brokerSessions) != 2 {
		t.Fatalf("expected 2 broker sessions, got %d", len(brokerSessions))
	}
	if !brokerSessions[1].Closed() {
		t.Error("expected the rejected session to be closed")
	}
}

func TestCancelUnknownTransaction(t *testing.T) {
	svc, _, _, _ := newNotificationFixture(t, time.Second)

	found, topic := svc.Cancel("never-subscribed")
	if found {
		t.Error("expected found=false for an unknown transaction")
	}
	if topic != "" {
		t.Errorf("expected an empty topic, got %q", topic)
	}
}

func TestCancelStopsActiveListener(t *testing.T) {
	svc, broker, _, registry := newNotificationFixture(t, 10*time.Second)

	type outcome struct {
		result *SubscribeResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := svc.Subscribe(context.Background(), validSubscribeInput("tx-cancel"))
		done <- outcome{result, err}
	}()

	session := waitForSession(t, broker, registry)

	found, topic := svc.Cancel("tx-cancel")
	if !found {
		t.Fatal("expected the active session to be found")
	}
	wantTopic := BuildTopic(testVATSK, testPokladnica, "tx-cancel")
	if topic != wantTopic {
		t.Errorf("expected topic %q, got %q", wantTopic, topic)
	}

	var out outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}
	if out.err != nil {
		t.Fatalf("Subscribe: %v", out.err)
	}
	if len(out.result.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(out.result.Messages))
	}

	unsubscribed := session.Unsubscribed()
	if len(unsubscribed) != 1 || unsubscribed[0] != wantTopic {
		t.Errorf("expected unsubscribe from %q, got %v", wantTopic, unsubscribed)
	}

	found, _ = svc.Cancel("tx-cancel")
	if found {
		t.Error("expected the second cancel to find nothing")
	}
}
