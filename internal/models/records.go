package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TransactionRecord is the persisted audit row for one generate-transaction
// attempt. A record is written on success and, best-effort, on failure too
// (with an empty TransactionID), so failed attempts stay auditable.
type TransactionRecord struct {
	TransactionID     string     `json:"transaction_id"`
	VATSK             string     `json:"vatsk"`
	Pokladnica        string     `json:"pokladnica"`
	IBAN              *string    `json:"iban"`
	Amount            *int64     `json:"amount"` // minor units (cents)
	Endpoint          string     `json:"endpoint"`
	ClientIP          string     `json:"client_ip"`
	StatusCode        int        `json:"status_code"`
	DurationMs        int64      `json:"duration_ms"`
	ResponseTimestamp *time.Time `json:"response_timestamp"`
	Dispute           bool       `json:"dispute"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NotificationRecord is one message observed on a confirmation topic. A
// single topic may produce several records (duplicate or multi-status
// deliveries are normal).
type NotificationRecord struct {
	Topic               string     `json:"topic"`
	RawPayload          string     `json:"raw_payload"`
	VATSK               string     `json:"vatsk"`
	Pokladnica          string     `json:"pokladnica"`
	TransactionID       string     `json:"transaction_id"`
	TransactionStatus   *string    `json:"transaction_status"`
	Amount              *int64     `json:"amount"` // minor units
	Currency            *string    `json:"currency"`
	IntegrityHash       *string    `json:"integrity_hash"`
	EndToEndID          *string    `json:"end_to_end_id"`
	ReceivedAt          time.Time  `json:"received_at"`
	IntegrityValidation *bool      `json:"integrity_validation"`
	RemoteTimestamp     *time.Time `json:"remote_timestamp"`
}

// DateQuery selects records created on one local calendar day. The offset is
// the caller's timezone offset in minutes east of UTC, so the day boundaries
// can be translated before comparing against UTC creation times.
type DateQuery struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Pokladnica  string `json:"pokladnica"`
	TZOffsetMin int    `json:"tz_offset_min"`
	Endpoint    string `json:"endpoint"`
}

// Bounds returns the [start, end) UTC window covering the queried local day.
func (q DateQuery) Bounds() (time.Time, time.Time, error) {
	day, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %v", q.Date, err)
	}
	start := day.Add(-time.Duration(q.TZOffsetMin) * time.Minute)
	return start, start.Add(24 * time.Hour), nil
}

// ParseAmount converts a decimal string such as "12.34" to minor units.
// More than two fraction digits is rejected rather than rounded.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is required")
	}
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
		if s == "" {
			return 0, fmt.Errorf("invalid amount %q", "-")
		}
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two fraction digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	// ParseInt would accept a second sign inside whole or frac; only bare
	// digits are valid past the leading sign.
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	total := units*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders minor units back as a decimal string.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
