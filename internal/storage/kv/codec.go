package kv

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
)

// record is the stored shape of an attempt. The raw connector response is hidden from the
// API JSON, so it is carried as its own field.
type record struct {
	domain.PaymentAttempt
	Response json.RawMessage `json:"connector_response,omitempty"`
}

func encodeAttempt(attempt *domain.PaymentAttempt) ([]byte, error) {
	raw, err := json.Marshal(record{PaymentAttempt: *attempt, Response: json.RawMessage(attempt.ConnectorResponse)})
	if err != nil {
		return nil, fmt.Errorf("encode attempt %s: %w", attempt.ID, err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodeAttempt(data []byte) (*domain.PaymentAttempt, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompress attempt: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	attempt := rec.PaymentAttempt
	if len(rec.Response) > 0 {
		attempt.ConnectorResponse = []byte(rec.Response)
	}
	return &attempt, nil
}
