package integrity

import (
	"testing"
	"time"

	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
)

func sampleEvent() transaction.Event {
	return transaction.Event{
		TransactionID: "tx-1",
		Type:          transaction.EventSigned,
		ActorID:       "bob",
		From:          transaction.StatusPending,
		To:            transaction.StatusPending,
		Timestamp:     time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC),
		PayloadJSON:   []byte(`{"principal":"bob","role":"BUYER"}`),
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"b": 1, "a": "<x>", "c": map[string]any{"z": true, "y": nil}})
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	want := `{"a":"<x>","b":1,"c":{"y":null,"z":true}}`
	if string(got) != want {
		t.Fatalf("canonical json = %s, want %s", got, want)
	}
}

func TestEventHashDeterministic(t *testing.T) {
	first, err := EventHash(sampleEvent())
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	second, err := EventHash(sampleEvent())
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	if first != second || len(first) != 64 {
		t.Fatalf("expected stable 64-char hash, got %s and %s", first, second)
	}
}

func TestEventHashIgnoresPayloadWhitespace(t *testing.T) {
	compact, err := EventHash(sampleEvent())
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	spaced := sampleEvent()
	spaced.PayloadJSON = []byte(`{ "role": "BUYER", "principal": "bob" }`)
	got, err := EventHash(spaced)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	if got != compact {
		t.Fatal("expected payload formatting not to change the hash")
	}
}

func TestEventHashChangesWithContent(t *testing.T) {
	base, err := EventHash(sampleEvent())
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	changed := sampleEvent()
	changed.ActorID = "mallory"
	got, err := EventHash(changed)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	if got == base {
		t.Fatal("expected hash to change with actor")
	}
}

func TestEventHashRequiresIdentity(t *testing.T) {
	evt := sampleEvent()
	evt.TransactionID = ""
	if _, err := EventHash(evt); err == nil {
		t.Fatal("expected error for missing transaction id")
	}
	evt = sampleEvent()
	evt.Type = ""
	if _, err := EventHash(evt); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	if _, err := ChainHash("tx-1", 1, "", ""); err == nil {
		t.Fatal("expected error when event hash is missing")
	}
	if _, err := ChainHash("tx-1", 0, "h", ""); err == nil {
		t.Fatal("expected error for zero seq")
	}
	first, err := ChainHash("tx-1", 2, "h", "prev-a")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	second, err := ChainHash("tx-1", 2, "h", "prev-b")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if first == second {
		t.Fatal("expected chain hash to depend on predecessor")
	}
}
