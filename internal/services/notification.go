package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"payment-terminal/internal/api"
	"payment-terminal/internal/credentials"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/models"
	"payment-terminal/internal/sessions"
)

var (
	vatskExact      = regexp.MustCompile(`^\d{10}$`)
	pokladnicaExact = regexp.MustCompile(`^\d{17}$`)
)

// BuildTopic derives the confirmation topic for a transaction.
func BuildTopic(vatsk, pokladnica, transactionID string) string {
	return fmt.Sprintf("VATSK-%s/POKLADNICA-%s/%s", vatsk, pokladnica, transactionID)
}

// ParseTopic splits a confirmation topic back into its triple.
func ParseTopic(topic string) (vatsk, pokladnica, transactionID string, err error) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("topic %q does not have three segments", topic)
	}
	vatsk = strings.TrimPrefix(parts[0], "VATSK-")
	pokladnica = strings.TrimPrefix(parts[1], "POKLADNICA-")
	transactionID = parts[2]
	if vatsk == parts[0] || !vatskExact.MatchString(vatsk) {
		return "", "", "", fmt.Errorf("topic %q has an invalid VATSK segment", topic)
	}
	if pokladnica == parts[1] || !pokladnicaExact.MatchString(pokladnica) {
		return "", "", "", fmt.Errorf("topic %q has an invalid POKLADNICA segment", topic)
	}
	if transactionID == "" {
		return "", "", "", fmt.Errorf("topic %q has an empty transaction id", topic)
	}
	return vatsk, pokladnica, transactionID, nil
}

// NotificationService correlates asynchronous payment confirmations: it
// opens time-bounded broker subscriptions, persists every observed message
// and cooperates with out-of-band cancellation through the shared registry.
type NotificationService struct {
	client      interfaces.SubscribeClient
	credentials *credentials.Manager
	gateway     interfaces.PersistenceGateway
	registry    *sessions.Registry
	endpoints   Endpoints
	verbose     bool
}

// NewNotificationService creates the service over its injected collaborators.
func NewNotificationService(
	client interfaces.SubscribeClient,
	creds *credentials.Manager,
	gateway interfaces.PersistenceGateway,
	registry *sessions.Registry,
	endpoints Endpoints,
	verbose bool,
) *NotificationService {
	return &NotificationService{
		client:      client,
		credentials: creds,
		gateway:     gateway,
		registry:    registry,
		endpoints:   endpoints,
		verbose:     verbose,
	}
}

// SubscribeInput is the caller-supplied material for one listen window.
type SubscribeInput struct {
	RawCert       []byte
	RawKey        []byte
	RawCA         []byte
	VATSK         string
	Pokladnica    string
	TransactionID string
	Mode          interfaces.Mode
}

// SubscribeResult is the accumulated outcome of one listen window: every
// message observed plus a narrative log of lifecycle events for caller-side
// diagnostics.
type SubscribeResult struct {
	Topic    string
	Messages []interfaces.BrokerMessage
	Log      []string
}

// Subscribe listens on the transaction's confirmation topic for the
// configured window, or until cancelled through the registry. Each message
// is persisted best-effort; a payload that fails structured decoding is
// stored raw with absent derived fields, never dropped.
func (s *NotificationService) Subscribe(ctx context.Context, in SubscribeInput) (*SubscribeResult, error) {
	if !vatskExact.MatchString(in.VATSK) {
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("vatsk must be exactly 10 digits"))
	}
	if !pokladnicaExact.MatchString(in.Pokladnica) {
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("pokladnica must be exactly 17 digits"))
	}
	if in.TransactionID == "" || strings.Contains(in.TransactionID, "/") {
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("transaction id must be non-empty and must not contain '/'"))
	}

	material, err := normalizeMaterial(s.endpoints, in.RawCert, in.RawKey, in.RawCA, in.Mode)
	if err != nil {
		return nil, err
	}

	set, err := s.credentials.Acquire(uuid.NewString(), material.cert, material.key, material.ca)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeCredentialWrite, err)
	}
	defer s.credentials.Release(set)

	topic := BuildTopic(in.VATSK, in.Pokladnica, in.TransactionID)
	broker := s.endpoints.Broker(in.Mode)
	result := &SubscribeResult{Topic: topic}
	result.log("connecting to broker %s", broker)

	session, err := s.client.Subscribe(broker, topic, set.Paths())
	if err != nil {
		return nil, workflowErr(api.ErrorCodeRemoteCall, fmt.Errorf("broker subscribe failed: %v", err))
	}
	result.log("subscribed to %s", topic)

	if !s.registry.Register(in.TransactionID, sessions.Entry{Topic: topic, Session: session}) {
		session.Close()
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("a subscription is already active for transaction %s", in.TransactionID))
	}
	defer func() {
		s.registry.Remove(in.TransactionID)
		session.Close()
		result.log("session cleaned up")
	}()

	timer := time.NewTimer(s.endpoints.ListenWindow)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-session.Messages():
			if !ok {
				// Closed from the outside: a cancellation won the race.
				result.log("session closed externally")
				return result, nil
			}
			result.Messages = append(result.Messages, msg)
			result.log("message received (%d bytes)", len(msg.Payload))
			s.persistNotification(ctx, in, topic, msg, result)
		case <-timer.C:
			result.log("listen window elapsed after %v", s.endpoints.ListenWindow)
			return result, nil
		case <-ctx.Done():
			result.log("caller context cancelled")
			return result, nil
		}
	}
}

func (r *SubscribeResult) log(format string, args ...interface{}) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

// persistNotification stores one observed message. Failure is logged and
// recorded in the narrative log; delivery to the caller is never blocked by
// a persistence or decoding problem.
func (s *NotificationService) persistNotification(ctx context.Context, in SubscribeInput, topic string, msg interfaces.BrokerMessage, result *SubscribeResult) {
	rec := decodeNotification(msg.Payload)
	rec.Topic = topic
	rec.VATSK = in.VATSK
	rec.Pokladnica = in.Pokladnica
	rec.TransactionID = in.TransactionID
	rec.ReceivedAt = msg.ReceivedAt

	if err := s.gateway.InsertNotification(ctx, rec); err != nil {
		log.Printf("[NOTIFICATION] Failed to persist message on %s: %v", topic, err)
		result.log("persistence failed: %v", err)
		return
	}
	result.log("message persisted")
}

// decodeNotification extracts the derived fields from a structured payload,
// best-effort. An undecodable payload yields a record with only the raw
// payload set.
func decodeNotification(payload []byte) *models.NotificationRecord {
	rec := &models.NotificationRecord{RawPayload: string(payload)}

	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return rec
	}

	rec.TransactionStatus = stringField(data, "transactionStatus", "status")
	rec.Currency = stringField(data, "currency")
	rec.IntegrityHash = stringField(data, "integrityHash", "hash")
	rec.EndToEndID = stringField(data, "endToEndId", "endToEndID")

	if v, ok := data["amount"]; ok {
		switch amount := v.(type) {
		case float64:
			minor := int64(math.Round(amount * 100))
			rec.Amount = &minor
		case string:
			if minor, err := models.ParseAmount(amount); err == nil {
				rec.Amount = &minor
			}
		}
	}

	if ts := stringField(data, "receivedAt", "timestamp"); ts != nil {
		if parsed, err := time.Parse(time.RFC3339, *ts); err == nil {
			rec.RemoteTimestamp = &parsed
		}
	}

	return rec
}

func stringField(data map[string]interface{}, keys ...string) *string {
	for _, key := range keys {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok {
				return &s
			}
		}
	}
	return nil
}

// Cancel tears down an in-flight subscription looked up by transaction id.
// A missing session is a normal race, reported as found=false.
func (s *NotificationService) Cancel(transactionID string) (found bool, topic string) {
	entry, ok := s.registry.Take(transactionID)
	if !ok {
		if s.verbose {
			log.Printf("[NOTIFICATION] No active session for %s", transactionID)
		}
		return false, ""
	}

	if err := entry.Session.Unsubscribe(entry.Topic); err != nil {
		// Non-fatal; the forced close below still ends the session.
		log.Printf("[NOTIFICATION] Unsubscribe from %s failed: %v", entry.Topic, err)
	}
	entry.Session.Close()

	if s.verbose {
		log.Printf("[NOTIFICATION] Cancelled session for %s on %s", transactionID, entry.Topic)
	}
	return true, entry.Topic
}
