package storage

import (
	"context"
	"testing"
	"time"

	"payment-terminal/internal/models"
)

func insertTransactionAt(t *testing.T, ms *MemoryStorage, id string, createdAt time.Time, pokladnica, endpoint string) {
	t.Helper()
	err := ms.InsertTransaction(context.Background(), &models.TransactionRecord{
		TransactionID: id,
		Pokladnica:    pokladnica,
		Endpoint:      endpoint,
		CreatedAt:     createdAt,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
}

func TestGetTransactionIgnoresEmptyID(t *testing.T) {
	ms := NewMemoryStorage(false)

	// Failed-attempt audit rows carry an empty id and must never be
	// addressable as a specific transaction.
	insertTransactionAt(t, ms, "", time.Now(), "", "test")

	rec, err := ms.GetTransaction(context.Background(), "")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if rec != nil {
		t.Error("expected no record for an empty id")
	}

	found, err := ms.SetDispute(context.Background(), "", true)
	if err != nil {
		t.Fatalf("SetDispute: %v", err)
	}
	if found {
		t.Error("expected SetDispute to ignore audit rows")
	}
}

func TestTransactionsByDateFilters(t *testing.T) {
	ms := NewMemoryStorage(false)

	day := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	insertTransactionAt(t, ms, "in-day", day, "11111111111111111", "test")
	insertTransactionAt(t, ms, "other-register", day, "22222222222222222", "test")
	insertTransactionAt(t, ms, "other-endpoint", day, "11111111111111111", "production")
	insertTransactionAt(t, ms, "next-day", day.Add(13*time.Hour), "11111111111111111", "test")

	records, err := ms.TransactionsByDate(context.Background(), models.DateQuery{
		Date:       "2026-08-27",
		Pokladnica: "11111111111111111",
		Endpoint:   "test",
	})
	if err != nil {
		t.Fatalf("TransactionsByDate: %v", err)
	}
	if len(records) != 1 || records[0].TransactionID != "in-day" {
		t.Fatalf("expected exactly the in-day record, got %d records", len(records))
	}
}

func TestTransactionsByDateHonorsTimezoneOffset(t *testing.T) {
	ms := NewMemoryStorage(false)

	// 23:30 UTC on the 27th is already the 28th at UTC+2.
	insertTransactionAt(t, ms, "late-evening", time.Date(2026, 8, 27, 23, 30, 0, 0, time.UTC), "", "test")

	records, err := ms.TransactionsByDate(context.Background(), models.DateQuery{Date: "2026-08-28", TZOffsetMin: 120})
	if err != nil {
		t.Fatalf("TransactionsByDate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the record on the local 28th, got %d records", len(records))
	}

	records, err = ms.TransactionsByDate(context.Background(), models.DateQuery{Date: "2026-08-27", TZOffsetMin: 120})
	if err != nil {
		t.Fatalf("TransactionsByDate: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records on the local 27th, got %d", len(records))
	}
}

func TestNotificationsByDate(t *testing.T) {
	ms := NewMemoryStorage(false)

	day := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	for _, rec := range []*models.NotificationRecord{
		{TransactionID: "a", Pokladnica: "11111111111111111", ReceivedAt: day},
		{TransactionID: "b", Pokladnica: "22222222222222222", ReceivedAt: day},
		{TransactionID: "c", Pokladnica: "11111111111111111", ReceivedAt: day.AddDate(0, 0, 1)},
	} {
		if err := ms.InsertNotification(context.Background(), rec); err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
	}

	records, err := ms.NotificationsByDate(context.Background(), models.DateQuery{
		Date:       "2026-08-27",
		Pokladnica: "11111111111111111",
	})
	if err != nil {
		t.Fatalf("NotificationsByDate: %v", err)
	}
	if len(records) != 1 || records[0].TransactionID != "a" {
		t.Fatalf("expected exactly notification a, got %d records", len(records))
	}
}

func TestByDateRejectsInvalidDate(t *testing.T) {
	ms := NewMemoryStorage(false)

	if _, err := ms.TransactionsByDate(context.Background(), models.DateQuery{Date: "27.08.2026"}); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
}
