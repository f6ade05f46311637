package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/louisbranch/assetflow/internal/platform/breaker"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{BaseURL: "  "}, nil); err == nil {
		t.Fatal("expected error for missing base url")
	}
}

func TestClientEvaluate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/evaluations" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		verdict := Verdict{Compliant: req.Jurisdiction != "KP", VerificationIDs: []string{"ver-1"}}
		if !verdict.Compliant {
			verdict.Reason = "embargo"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(verdict)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL + "/", Timeout: time.Second, Breaker: breaker.DefaultConfig()}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ok, err := client.Evaluate(context.Background(), Request{Jurisdiction: "US-NY", Operation: OperationCreate})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok.Compliant || len(ok.VerificationIDs) != 1 || ok.VerificationIDs[0] != "ver-1" {
		t.Fatalf("verdict = %+v", ok)
	}

	denied, err := client.Evaluate(context.Background(), Request{Jurisdiction: "KP", Operation: OperationExecute})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if denied.Compliant || denied.Reason != "embargo" {
		t.Fatalf("verdict = %+v", denied)
	}
}

func TestClientServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Breaker: breaker.DefaultConfig()}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Evaluate(context.Background(), Request{Jurisdiction: "US"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("evaluate = %v, want %v", err, ErrUnavailable)
	}
}

func TestClientTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Breaker: breaker.DefaultConfig()}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Evaluate(ctx, Request{Jurisdiction: "US"})
	if !Transient(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("evaluate = %v, want transient deadline", err)
	}
}
