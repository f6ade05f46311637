package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
)

type eventEnvelope struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	ActorID       string          `json:"actor_id"`
	From          string          `json:"from_status"`
	To            string          `json:"to_status"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type chainEnvelope struct {
	TransactionID string `json:"transaction_id"`
	Seq           int64  `json:"seq"`
	EventHash     string `json:"event_hash"`
	PrevHash      string `json:"prev_hash"`
}

// EventHash computes the content hash of a single audit event.
func EventHash(evt transaction.Event) (string, error) {
	if strings.TrimSpace(evt.TransactionID) == "" {
		return "", fmt.Errorf("transaction id is required")
	}
	if evt.Type == "" {
		return "", fmt.Errorf("event type is required")
	}
	env := eventEnvelope{
		TransactionID: evt.TransactionID,
		Type:          string(evt.Type),
		ActorID:       evt.ActorID,
		From:          string(evt.From),
		To:            string(evt.To),
		Timestamp:     evt.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if len(evt.PayloadJSON) > 0 {
		env.Payload = evt.PayloadJSON
	}
	return hashCanonical(env)
}

// ChainHash links an event hash at seq to the previous chain hash. The first
// event of a transaction uses an empty prevHash.
func ChainHash(transactionID string, seq int64, eventHash, prevHash string) (string, error) {
	if strings.TrimSpace(eventHash) == "" {
		return "", fmt.Errorf("event hash is required")
	}
	if seq <= 0 {
		return "", fmt.Errorf("sequence must be positive")
	}
	return hashCanonical(chainEnvelope{
		TransactionID: transactionID,
		Seq:           seq,
		EventHash:     eventHash,
		PrevHash:      prevHash,
	})
}

func hashCanonical(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
