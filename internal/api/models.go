package api

import (
	"time"

	"payment-terminal/internal/models"
)

// ConvertContainerResponse is the result of decomposing a PKCS#12 container.
type ConvertContainerResponse struct {
	CertificatePEM string  `json:"certificate_pem"`
	PrivateKeyPEM  string  `json:"private_key_pem"`
	VATSK          *string `json:"vatsk"`
	Pokladnica     *string `json:"pokladnica"`
}

// GenerateTransactionResponse carries the remote transaction id plus the raw
// remote response so the terminal can show exactly what the bank said.
type GenerateTransactionResponse struct {
	TransactionID string                 `json:"transaction_id"`
	StatusCode    int                    `json:"status_code"`
	Response      map[string]interface{} `json:"response,omitempty"`
	RawResponse   string                 `json:"raw_response,omitempty"`
	EmptyBody     bool                   `json:"empty_body,omitempty"`
	VATSK         *string                `json:"vatsk"`
	Pokladnica    *string                `json:"pokladnica"`
}

// TransactionHistoryResponse is the read-only history variant.
type TransactionHistoryResponse struct {
	StatusCode  int                    `json:"status_code"`
	Response    map[string]interface{} `json:"response,omitempty"`
	RawResponse string                 `json:"raw_response,omitempty"`
	EmptyBody   bool                   `json:"empty_body,omitempty"`
}

// SubscribeResponse is the accumulated outcome of one listen window.
type SubscribeResponse struct {
	Topic    string                `json:"topic"`
	Messages []NotificationMessage `json:"messages"`
	Log      []string              `json:"log"`
}

// NotificationMessage is one broker message as returned to the caller.
type NotificationMessage struct {
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// UnsubscribeRequest / UnsubscribeResponse.
type UnsubscribeRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

type UnsubscribeResponse struct {
	Found  bool   `json:"found"`
	Closed bool   `json:"closed"`
	Topic  string `json:"topic,omitempty"`
}

// MarkDisputeRequest marks a transaction as disputed.
type MarkDisputeRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// SetIntegrityValidationRequest flags notification records as validated.
type SetIntegrityValidationRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	IsValid       *bool  `json:"is_valid" binding:"required"`
}

type SetIntegrityValidationResponse struct {
	Updated       int                          `json:"updated"`
	Notifications []*models.NotificationRecord `json:"notifications"`
}

// ByDateRequest selects records created on one local calendar day.
type ByDateRequest struct {
	Date        string `json:"date" binding:"required"`
	Pokladnica  string `json:"pokladnica"`
	TZOffsetMin int    `json:"tz_offset_min"`
	Mode        string `json:"mode"`
}

type TransactionsByDateResponse struct {
	Transactions []*models.TransactionRecord `json:"transactions"`
}

type NotificationsByDateResponse struct {
	Notifications []*models.NotificationRecord `json:"notifications"`
}
