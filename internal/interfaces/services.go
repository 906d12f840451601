package interfaces

import (
	"context"
	"time"

	"payment-terminal/internal/models"
)

// Mode selects between the production and test settlement endpoints,
// brokers and CA material.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

// ParseMode maps a caller-supplied flag to a Mode. Anything that is not
// explicitly production is treated as test.
func ParseMode(s string) Mode {
	switch s {
	case "production", "prod", "true", "1":
		return ModeProduction
	default:
		return ModeTest
	}
}

// Identity is the business identity extracted from a merchant certificate.
// Either field may be absent; absence is a valid outcome, not an error.
type Identity struct {
	VATSK      *string
	Pokladnica *string
}

// CredentialPaths points at the materialized client certificate, private key
// and CA bundle for one outbound mutual-TLS conversation.
type CredentialPaths struct {
	CertPath string
	KeyPath  string
	CAPath   string
}

// RemoteRequest describes one HTTPS call to the settlement API.
type RemoteRequest struct {
	Method      string
	URL         string
	Timeout     time.Duration
	Credentials CredentialPaths
}

// RemoteInvoker performs an HTTPS request with client-certificate
// authentication and returns the raw response frame: status line, header
// block and body separated by a blank line. Parsing the frame is the
// caller's concern.
type RemoteInvoker interface {
	Invoke(ctx context.Context, req RemoteRequest) (string, error)
}

// BrokerMessage is one message observed on a subscription topic.
type BrokerMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// SubscribeSession is an open broker subscription. Messages is closed when
// the session ends, whether by Close or by a broker-side disconnect.
type SubscribeSession interface {
	Messages() <-chan BrokerMessage
	Unsubscribe(topic string) error
	Close()
}

// SubscribeClient opens subscriptions against a notification broker using
// the given mutual-TLS credentials.
type SubscribeClient interface {
	Subscribe(broker, topic string, creds CredentialPaths) (SubscribeSession, error)
}

// PersistenceGateway is the durable store's query/insert/update surface.
// Lookups that find nothing return (nil, nil) / (0, nil); only
// infrastructure failures are errors.
type PersistenceGateway interface {
	InsertTransaction(ctx context.Context, rec *models.TransactionRecord) error
	InsertNotification(ctx context.Context, rec *models.NotificationRecord) error
	GetTransaction(ctx context.Context, transactionID string) (*models.TransactionRecord, error)
	GetNotificationsByTransaction(ctx context.Context, transactionID string) ([]*models.NotificationRecord, error)
	SetDispute(ctx context.Context, transactionID string, disputed bool) (bool, error)
	SetIntegrityValidation(ctx context.Context, transactionID string, isValid bool) (int, error)
	TransactionsByDate(ctx context.Context, q models.DateQuery) ([]*models.TransactionRecord, error)
	NotificationsByDate(ctx context.Context, q models.DateQuery) ([]*models.NotificationRecord, error)
}
