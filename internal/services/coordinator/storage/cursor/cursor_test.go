package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := NewSeqCursor(42, true, "type = \"transaction.signed\"", "seq desc")

	token, err := Encode(original)
	if err != nil {
		t.Fatalf("encode cursor: %v", err)
	}
	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded != original {
		t.Fatalf("cursor mismatch: %+v != %+v", decoded, original)
	}
	if decoded.Dir != DirectionBackward {
		t.Fatalf("dir = %s, want backward", decoded.Dir)
	}
}

func TestKeysetCursorRoundTrip(t *testing.T) {
	original := NewKeysetCursor(1700000000000, "tx-9", "party:alice")
	token, err := Encode(original)
	if err != nil {
		t.Fatalf("encode cursor: %v", err)
	}
	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded.CreatedAt != original.CreatedAt || decoded.ID != "tx-9" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if err := ValidateFilterHash(decoded, "party:alice"); err != nil {
		t.Fatalf("scope check: %v", err)
	}
	if err := ValidateFilterHash(decoded, "party:bob"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected scope mismatch, got %v", err)
	}
}

func TestDecodeRejectsBadTokens(t *testing.T) {
	if _, err := Decode(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token error = %v", err)
	}
	if _, err := Decode("not-base64@@"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("base64 error = %v", err)
	}
	raw, err := json.Marshal(Cursor{Seq: 1, Dir: "sideways"})
	if err != nil {
		t.Fatalf("marshal cursor: %v", err)
	}
	if _, err := Decode(base64.URLEncoding.EncodeToString(raw)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("direction error = %v", err)
	}
}

func TestHashFilter(t *testing.T) {
	if HashFilter("") != "" {
		t.Fatal("expected empty hash for empty filter")
	}
	hash := HashFilter("foo")
	if len(hash) != 16 {
		t.Fatalf("expected 16-char hash, got %d", len(hash))
	}
	if hash == HashFilter("bar") {
		t.Fatal("expected different hashes for different filters")
	}
}

func TestValidateOrderHash(t *testing.T) {
	c := NewSeqCursor(10, false, "", "seq asc")
	if err := ValidateOrderHash(c, "seq asc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateOrderHash(c, "seq desc"); err == nil {
		t.Fatal("expected error for mismatched order")
	}
}
