// Package cursor encodes opaque keyset page tokens.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Direction is the keyset scan direction.
type Direction string

const (
	DirectionForward  Direction = "fwd"
	DirectionBackward Direction = "bwd"
)

// Cursor is the decoded position of a page token. Audit pages key on Seq;
// transaction pages key on (CreatedAt, ID).
type Cursor struct {
	Seq        int64     `json:"s,omitempty"`
	CreatedAt  int64     `json:"c,omitempty"`
	ID         string    `json:"i,omitempty"`
	Dir        Direction `json:"d"`
	FilterHash string    `json:"f,omitempty"`
	OrderHash  string    `json:"o,omitempty"`
}

// ErrInvalidToken reports a malformed or mismatched page token.
var ErrInvalidToken = errors.New("invalid page token")

// NewSeqCursor positions after seq in the requested order.
func NewSeqCursor(seq int64, descending bool, filter, orderBy string) Cursor {
	dir := DirectionForward
	if descending {
		dir = DirectionBackward
	}
	return Cursor{Seq: seq, Dir: dir, FilterHash: HashFilter(filter), OrderHash: HashFilter(orderBy)}
}

// NewKeysetCursor positions after the (createdAt, id) pair. scope binds the
// token to the index it was issued for.
func NewKeysetCursor(createdAt int64, id, scope string) Cursor {
	return Cursor{CreatedAt: createdAt, ID: id, Dir: DirectionForward, FilterHash: HashFilter(scope)}
}

// Encode renders c as a URL-safe token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Dir != DirectionForward && c.Dir != DirectionBackward {
		return Cursor{}, fmt.Errorf("%w: direction %q", ErrInvalidToken, c.Dir)
	}
	return c, nil
}

// HashFilter returns a short stable hash for a filter or order expression.
func HashFilter(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

// ValidateFilterHash rejects tokens issued for a different filter or scope.
func ValidateFilterHash(c Cursor, filter string) error {
	if c.FilterHash != HashFilter(filter) {
		return fmt.Errorf("%w: filter changed between pages", ErrInvalidToken)
	}
	return nil
}

// ValidateOrderHash rejects tokens issued for a different ordering.
func ValidateOrderHash(c Cursor, orderBy string) error {
	if c.OrderHash != HashFilter(orderBy) {
		return fmt.Errorf("%w: order changed between pages", ErrInvalidToken)
	}
	return nil
}
