package relay

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/sqlite"
)

var baseTime = time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	fail func(msgs []kafka.Message) error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		if err := w.fail(msgs); err != nil {
			var perMessage kafka.WriteErrors
			if errors.As(err, &perMessage) {
				for i, msg := range msgs {
					if perMessage[i] == nil {
						w.msgs = append(w.msgs, msg)
					}
				}
			}
			return err
		}
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "coordinator.db"), ring)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seed stores a single-party transaction, which journals three events.
func seed(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()
	decision := transaction.Decide(transaction.State{}, transaction.Create{
		TransactionID: id,
		ActorID:       "alice",
		Kind:          transaction.KindAssetTransfer,
		Jurisdiction:  "US-NY",
		AssetIDs:      []string{"asset-1"},
		Parties:       []transaction.PartyInput{{Principal: "alice", Role: "SELLER"}},
	}, func() time.Time { return baseTime })
	if decision.Rejected() {
		t.Fatalf("decide create: %v", decision.Err())
	}
	if _, _, err := store.ApplyWrite(context.Background(), storage.Write{
		State:  transaction.FoldAll(transaction.State{}, decision.Events),
		Events: decision.Events,
	}); err != nil {
		t.Fatalf("apply write: %v", err)
	}
}

func newRelay(t *testing.T, store *sqlite.Store, writer Writer, now *time.Time) *Relay {
	t.Helper()
	r, err := New(store, writer, Config{PollInterval: 10 * time.Millisecond, InitialBackoff: time.Minute, MaxBackoff: time.Hour}, nil, nil,
		WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return r
}

func TestNewValidatesDependencies(t *testing.T) {
	if _, err := New(nil, &fakeWriter{}, Config{}, nil, nil); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("err = %v, want ErrStoreRequired", err)
	}
	if _, err := New(openStore(t), nil, Config{}, nil, nil); !errors.Is(err, ErrWriterRequired) {
		t.Fatalf("err = %v, want ErrWriterRequired", err)
	}
}

func TestPublishOnceWritesKeyedMessagesOnce(t *testing.T) {
	store := openStore(t)
	seed(t, store, "tx-1")
	writer := &fakeWriter{}
	now := baseTime.Add(time.Second)
	r := newRelay(t, store, writer, &now)

	published, err := r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published != 3 {
		t.Fatalf("published = %d, want 3", published)
	}
	msgs := writer.written()
	for i, msg := range msgs {
		if string(msg.Key) != "tx-1" {
			t.Fatalf("key = %q, want tx-1", msg.Key)
		}
		var decoded Message
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if decoded.Seq != int64(i+1) || decoded.ChainHash == "" || decoded.Signature == "" {
			t.Fatalf("message %d = %+v", i, decoded)
		}
	}
	if decodedType := string(msgs[0].Headers[0].Value); decodedType != string(transaction.EventCreated) {
		t.Fatalf("event_type header = %q", decodedType)
	}

	now = now.Add(time.Hour)
	again, err := r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if again != 0 {
		t.Fatalf("second publish = %d, want 0", again)
	}
}

func TestPublishFailureBacksOff(t *testing.T) {
	store := openStore(t)
	seed(t, store, "tx-1")
	writer := &fakeWriter{fail: func([]kafka.Message) error { return errors.New("broker down") }}
	now := baseTime.Add(time.Second)
	r := newRelay(t, store, writer, &now)

	published, err := r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published != 0 {
		t.Fatalf("published = %d, want 0", published)
	}

	writer.fail = nil
	now = now.Add(10 * time.Second)
	if published, _ := r.PublishOnce(context.Background()); published != 0 {
		t.Fatalf("published before backoff elapsed = %d, want 0", published)
	}

	now = now.Add(2 * time.Minute)
	published, err = r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("publish after backoff: %v", err)
	}
	if published != 3 {
		t.Fatalf("published after backoff = %d, want 3", published)
	}
}

func TestPublishPartialWriteErrors(t *testing.T) {
	store := openStore(t)
	seed(t, store, "tx-1")
	writer := &fakeWriter{fail: func(msgs []kafka.Message) error {
		errs := make(kafka.WriteErrors, len(msgs))
		errs[1] = errors.New("message too large")
		return errs
	}}
	now := baseTime.Add(time.Second)
	r := newRelay(t, store, writer, &now)

	published, err := r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published != 2 {
		t.Fatalf("published = %d, want 2", published)
	}

	writer.fail = nil
	now = now.Add(time.Hour)
	published, err = r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("retry publish: %v", err)
	}
	if published != 1 {
		t.Fatalf("retried = %d, want 1", published)
	}
	msgs := writer.written()
	var last Message
	if err := json.Unmarshal(msgs[len(msgs)-1].Value, &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Seq != 2 {
		t.Fatalf("retried seq = %d, want 2", last.Seq)
	}
}

func TestRetryDelayGrows(t *testing.T) {
	r := &Relay{cfg: Config{InitialBackoff: time.Second, MaxBackoff: time.Minute}.normalized()}
	first := r.retryDelay(0)
	if first < 800*time.Millisecond || first > 1200*time.Millisecond {
		t.Fatalf("first delay = %v, want about 1s", first)
	}
	if capped := r.retryDelay(20); capped > time.Minute+12*time.Second {
		t.Fatalf("capped delay = %v, want at most max plus jitter", capped)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := openStore(t)
	seed(t, store, "tx-1")
	writer := &fakeWriter{}
	now := baseTime.Add(time.Second)
	r := newRelay(t, store, writer, &now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for len(writer.written()) < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for relay")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestPublishSkipsUnencodableEntry(t *testing.T) {
	store := openStore(t)
	seed(t, store, "tx-1")
	writer := &fakeWriter{}
	now := baseTime.Add(time.Second)
	broken := true
	r, err := New(store, writer, Config{InitialBackoff: time.Minute, MaxBackoff: time.Hour}, nil, nil,
		WithClock(func() time.Time { return now }),
		WithEncoder(func(evt storage.AuditEvent) (kafka.Message, error) {
			if broken && evt.Seq == 2 {
				return kafka.Message{}, errors.New("bad payload")
			}
			return Encode(evt)
		}))
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}

	published, err := r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published != 2 {
		t.Fatalf("published = %d, want 2", published)
	}

	broken = false
	now = now.Add(time.Hour)
	published, err = r.PublishOnce(context.Background())
	if err != nil {
		t.Fatalf("retry publish: %v", err)
	}
	if published != 1 {
		t.Fatalf("retried = %d, want 1", published)
	}
	msgs := writer.written()
	if len(msgs) != 3 {
		t.Fatalf("written = %d, want 3", len(msgs))
	}
	var last Message
	if err := json.Unmarshal(msgs[2].Value, &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Seq != 2 {
		t.Fatalf("retried seq = %d, want 2", last.Seq)
	}
}
