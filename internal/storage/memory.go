package storage

import (
	"context"
	"log"
	"sync"

	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/models"
)

// MemoryStorage provides a thread-safe in-memory persistence gateway. Used
// in standalone mode and in tests; the durable variant is PostgresStorage.
type MemoryStorage struct {
	mu            sync.RWMutex
	transactions  []*models.TransactionRecord
	notifications []*models.NotificationRecord
	verbose       bool
}

// NewMemoryStorage creates a new in-memory gateway.
func NewMemoryStorage(verbose bool) *MemoryStorage {
	return &MemoryStorage{verbose: verbose}
}

var _ interfaces.PersistenceGateway = (*MemoryStorage)(nil)

// InsertTransaction appends a transaction record. Records with an empty
// transaction id are failed-attempt audit rows and may repeat.
func (ms *MemoryStorage) InsertTransaction(_ context.Context, rec *models.TransactionRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.transactions = append(ms.transactions, rec)
	if ms.verbose {
		log.Printf("[STORAGE] Stored transaction %q (%d total)", rec.TransactionID, len(ms.transactions))
	}
	return nil
}

// InsertNotification appends a notification record.
func (ms *MemoryStorage) InsertNotification(_ context.Context, rec *models.NotificationRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.notifications = append(ms.notifications, rec)
	if ms.verbose {
		log.Printf("[STORAGE] Stored notification for %s on %s", rec.TransactionID, rec.Topic)
	}
	return nil
}

// GetTransaction returns the record with the given id, or nil when absent.
func (ms *MemoryStorage) GetTransaction(_ context.Context, transactionID string) (*models.TransactionRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if transactionID == "" {
		return nil, nil
	}
	for _, rec := range ms.transactions {
		if rec.TransactionID == transactionID {
			return rec, nil
		}
	}
	return nil, nil
}

// GetNotificationsByTransaction returns every notification record for the id.
func (ms *MemoryStorage) GetNotificationsByTransaction(_ context.Context, transactionID string) ([]*models.NotificationRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var matches []*models.NotificationRecord
	for _, rec := range ms.notifications {
		if rec.TransactionID == transactionID {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// SetDispute flips the dispute flag; reports whether a record was found.
func (ms *MemoryStorage) SetDispute(_ context.Context, transactionID string, disputed bool) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, rec := range ms.transactions {
		if transactionID != "" && rec.TransactionID == transactionID {
			rec.Dispute = disputed
			return true, nil
		}
	}
	return false, nil
}

// SetIntegrityValidation updates all matching notification records and
// returns how many were touched.
func (ms *MemoryStorage) SetIntegrityValidation(_ context.Context, transactionID string, isValid bool) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	updated := 0
	for _, rec := range ms.notifications {
		if rec.TransactionID == transactionID {
			value := isValid
			rec.IntegrityValidation = &value
			updated++
		}
	}
	return updated, nil
}

// TransactionsByDate returns transactions created on the queried local day.
func (ms *MemoryStorage) TransactionsByDate(_ context.Context, q models.DateQuery) ([]*models.TransactionRecord, error) {
	start, end, err := q.Bounds()
	if err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var matches []*models.TransactionRecord
	for _, rec := range ms.transactions {
		if rec.CreatedAt.Before(start) || !rec.CreatedAt.Before(end) {
			continue
		}
		if q.Pokladnica != "" && rec.Pokladnica != q.Pokladnica {
			continue
		}
		if q.Endpoint != "" && rec.Endpoint != q.Endpoint {
			continue
		}
		matches = append(matches, rec)
	}
	return matches, nil
}

// NotificationsByDate returns notifications received on the queried local day.
func (ms *MemoryStorage) NotificationsByDate(_ context.Context, q models.DateQuery) ([]*models.NotificationRecord, error) {
	start, end, err := q.Bounds()
	if err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var matches []*models.NotificationRecord
	for _, rec := range ms.notifications {
		if rec.ReceivedAt.Before(start) || !rec.ReceivedAt.Before(end) {
			continue
		}
		if q.Pokladnica != "" && rec.Pokladnica != q.Pokladnica {
			continue
		}
		matches = append(matches, rec)
	}
	return matches, nil
}
