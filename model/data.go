// Package model contains the domain models of the pickup mediator.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// tablePrefix is prepended to every table name returned by TableName.
// Repository adapters may override it with their own prefix.
const tablePrefix = "pickup_"

// Payload is the opaque structured content of a stored message.
// It is persisted as a JSON document.
type Payload map[string]interface{}

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Payload{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("payload: unsupported scan type %T", src)
	}

	out := Payload{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("payload: %w", err)
		}
	}
	*p = out
	return nil
}

// JSON returns the canonical JSON text of the payload, as embedded in
// pickup responses.
func (p Payload) JSON() (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
