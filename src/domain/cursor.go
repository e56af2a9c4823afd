package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// CursorToken marks a position in the (created_at desc, id desc) order.
// Ties on created_at are broken by id, so the order is total.
type CursorToken struct {
	LastSeenTimestamp time.Time `json:"ts"`
	LastSeenID        uuid.UUID `json:"id"`
}

func NewCursorToken(createdAt time.Time, id uuid.UUID) *CursorToken {
	return &CursorToken{LastSeenTimestamp: createdAt.UTC(), LastSeenID: id}
}

// Encode returns the opaque form handed to clients.
func (c CursorToken) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque token. An empty token means "first page" and returns nil.
func DecodeCursor(token string) (*CursorToken, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, Validationf("invalid cursor")
	}

	var c CursorToken
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, Validationf("invalid cursor")
	}
	if c.LastSeenTimestamp.IsZero() || c.LastSeenID == uuid.Nil {
		return nil, Validationf("invalid cursor")
	}

	return &c, nil
}

// Admits reports whether a row at (createdAt, id) comes strictly after the cursor:
// created_at < ts OR (created_at = ts AND id < last_id).
func (c CursorToken) Admits(createdAt time.Time, id uuid.UUID) bool {
	if createdAt.Before(c.LastSeenTimestamp) {
		return true
	}
	return createdAt.Equal(c.LastSeenTimestamp) && bytes.Compare(id[:], c.LastSeenID[:]) < 0
}

// NormalizeLimit applies the default and rejects out of range values.
func NormalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultPageLimit, nil
	}
	if limit < 0 || limit > MaxPageLimit {
		return 0, Validationf("limit must be between 1 and %d", MaxPageLimit)
	}
	return limit, nil
}
