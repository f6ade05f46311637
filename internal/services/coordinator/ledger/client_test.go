package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/assetflow/internal/platform/breaker"
)

type fakeLedgerServer struct {
	mu     sync.Mutex
	assets map[string]Asset
	status int
}

func (f *fakeLedgerServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		asset, ok := f.assets[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(asset)
	})
	mux.HandleFunc("POST /v1/assets/{id}/transfer", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			NewOwner string `json:"new_owner"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		asset, ok := f.assets[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if body.NewOwner == "frozen" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"asset is frozen"}`))
			return
		}
		asset.Owner = body.NewOwner
		f.assets[asset.ID] = asset
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /v1/assets/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		asset := f.assets[r.PathValue("id")]
		asset.Status = body.Status
		f.assets[asset.ID] = asset
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeLedgerServer, cfg breaker.Config) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{BaseURL: server.URL, Timeout: time.Second, Breaker: cfg}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, nil); err == nil {
		t.Fatal("expected error for missing base url")
	}
}

func TestClientRoundTrip(t *testing.T) {
	fake := &fakeLedgerServer{assets: map[string]Asset{"a1": {ID: "a1", Owner: "alice", Status: "ACTIVE"}}}
	client := newTestClient(t, fake, breaker.DefaultConfig())
	ctx := context.Background()

	asset, err := client.GetAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if asset.Owner != "alice" || asset.Status != "ACTIVE" {
		t.Fatalf("asset = %+v", asset)
	}
	if err := client.TransferAsset(ctx, "a1", "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := client.UpdateStatus(ctx, "a1", "SETTLED"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	fake.mu.Lock()
	got := fake.assets["a1"]
	fake.mu.Unlock()
	if got.Owner != "bob" || got.Status != "SETTLED" {
		t.Fatalf("server asset = %+v", got)
	}
}

func TestClientClassifiesErrors(t *testing.T) {
	fake := &fakeLedgerServer{assets: map[string]Asset{"a1": {ID: "a1"}}}
	client := newTestClient(t, fake, breaker.DefaultConfig())
	ctx := context.Background()

	if _, err := client.GetAsset(ctx, "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("missing = %v, want %v", err, ErrAssetNotFound)
	}
	err := client.TransferAsset(ctx, "a1", "frozen")
	if !errors.Is(err, ErrRejected) || Transient(err) {
		t.Fatalf("frozen = %v, want non-transient %v", err, ErrRejected)
	}

	fake.mu.Lock()
	fake.status = http.StatusServiceUnavailable
	fake.mu.Unlock()
	if _, err := client.GetAsset(ctx, "a1"); !errors.Is(err, ErrUnavailable) || !Transient(err) {
		t.Fatalf("503 = %v, want transient %v", err, ErrUnavailable)
	}
}

func TestClientBreakerOpensOnTransientFailures(t *testing.T) {
	fake := &fakeLedgerServer{assets: map[string]Asset{}, status: http.StatusBadGateway}
	cfg := breaker.DefaultConfig()
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Minute
	client := newTestClient(t, fake, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.GetAsset(ctx, "a1"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d = %v", i, err)
		}
	}
	_, err := client.GetAsset(ctx, "a1")
	if !errors.Is(err, breaker.ErrOpen) || !Transient(err) {
		t.Fatalf("open breaker = %v, want transient %v", err, breaker.ErrOpen)
	}
}

func TestClientNotFoundDoesNotTripBreaker(t *testing.T) {
	fake := &fakeLedgerServer{assets: map[string]Asset{"a1": {ID: "a1"}}}
	cfg := breaker.DefaultConfig()
	cfg.ConsecutiveFailures = 1
	client := newTestClient(t, fake, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.GetAsset(ctx, "missing"); !errors.Is(err, ErrAssetNotFound) {
			t.Fatalf("call %d = %v", i, err)
		}
	}
	if _, err := client.GetAsset(ctx, "a1"); err != nil {
		t.Fatalf("breaker tripped on not-found: %v", err)
	}
}
