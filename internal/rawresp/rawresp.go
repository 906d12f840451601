package rawresp

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Parsed is the decoded form of a raw response frame: status line, header
// block and body separated by a blank line. Body decoding is best-effort;
// a body that is not structured data is kept verbatim in RawBody with Data
// left nil, and an empty body is a degraded (but non-error) outcome marked
// by EmptyBody.
type Parsed struct {
	StatusLine string
	StatusCode int
	Headers    map[string]string
	RawBody    string
	Data       map[string]interface{}
	EmptyBody  bool
}

// Parse splits and decodes a raw response frame. It never fails; whatever
// cannot be decoded stays raw.
func Parse(raw string) Parsed {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	head, body := raw, ""
	if i := strings.Index(raw, "\n\n"); i >= 0 {
		head, body = raw[:i], raw[i+2:]
	}
	body = strings.TrimSpace(body)

	lines := strings.Split(head, "\n")
	parsed := Parsed{
		StatusLine: strings.TrimSpace(lines[0]),
		Headers:    make(map[string]string),
		RawBody:    body,
		EmptyBody:  body == "",
	}
	parsed.StatusCode = statusCodeOf(parsed.StatusLine)

	for _, line := range lines[1:] {
		if name, value, ok := strings.Cut(line, ":"); ok {
			parsed.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	if body != "" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(body), &data); err == nil {
			parsed.Data = data
		}
	}

	return parsed
}

// statusCodeOf extracts the numeric code from a status line such as
// "HTTP/1.1 200 OK". Zero when there is none to find.
func statusCodeOf(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// StringField returns a top-level string field of the structured body, or ""
// when the body is unstructured or the field is absent.
func (p Parsed) StringField(keys ...string) string {
	for _, key := range keys {
		if v, ok := p.Data[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// TransactionID returns the remote transaction identifier, if present.
func (p Parsed) TransactionID() string {
	return p.StringField("transaction_id", "transactionId")
}

// CreatedAt returns the remote creation timestamp, if present and parseable.
func (p Parsed) CreatedAt() *time.Time {
	value := p.StringField("created_at", "createdAt")
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
