package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"payment-terminal/internal/api"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/models"
)

// DisputeService holds the small state-update operations over persisted
// transaction and notification records.
type DisputeService struct {
	gateway interfaces.PersistenceGateway
	verbose bool
}

// NewDisputeService creates the service.
func NewDisputeService(gateway interfaces.PersistenceGateway, verbose bool) *DisputeService {
	return &DisputeService{gateway: gateway, verbose: verbose}
}

// MarkDisputed flags the transaction as disputed. The generation-side and
// notification-side persistence paths are independent and may race or
// partially fail, so when only a notification record exists a minimal
// transaction record is synthesized from it.
func (s *DisputeService) MarkDisputed(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	notifications, err := s.gateway.GetNotificationsByTransaction(ctx, transactionID)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeInternalError, err)
	}
	if len(notifications) == 0 {
		return nil, workflowErr(api.ErrorCodeRecordNotFound, fmt.Errorf("no notification record for transaction %s", transactionID))
	}

	found, err := s.gateway.SetDispute(ctx, transactionID, true)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeInternalError, err)
	}
	if found {
		rec, err := s.gateway.GetTransaction(ctx, transactionID)
		if err != nil {
			return nil, workflowErr(api.ErrorCodeInternalError, err)
		}
		return rec, nil
	}

	// status_code=0 and duration_ms=0 are placeholders, not measurements:
	// the generating side never persisted its half of the story.
	source := notifications[0]
	rec := &models.TransactionRecord{
		TransactionID:     transactionID,
		VATSK:             source.VATSK,
		Pokladnica:        source.Pokladnica,
		Amount:            source.Amount,
		ResponseTimestamp: source.RemoteTimestamp,
		Dispute:           true,
		CreatedAt:         time.Now(),
	}
	if err := s.gateway.InsertTransaction(ctx, rec); err != nil {
		return nil, workflowErr(api.ErrorCodeInternalError, err)
	}

	if s.verbose {
		log.Printf("[DISPUTE] Synthesized transaction record for %s from notification data", transactionID)
	}
	return rec, nil
}

// SetIntegrityValidation marks every notification record of the transaction
// with the validation verdict.
func (s *DisputeService) SetIntegrityValidation(ctx context.Context, transactionID string, isValid bool) ([]*models.NotificationRecord, error) {
	updated, err := s.gateway.SetIntegrityValidation(ctx, transactionID, isValid)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeInternalError, err)
	}
	if updated == 0 {
		return nil, workflowErr(api.ErrorCodeRecordNotFound, fmt.Errorf("no notification records for transaction %s", transactionID))
	}

	records, err := s.gateway.GetNotificationsByTransaction(ctx, transactionID)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeInternalError, err)
	}
	return records, nil
}
