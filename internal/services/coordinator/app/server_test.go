package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	platformgrpc "github.com/louisbranch/assetflow/internal/platform/grpc"
	coordinatorapi "github.com/louisbranch/assetflow/internal/services/coordinator/api/grpc/coordinator"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Addr:       "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "nested", "coordinator.db"),
		SeedAssets: []string{"asset-1=alice", "asset-2=alice:LOCKED"},
		Auditors:   []string{"auditor"},
		AuditKey:   integrity.KeyConfig{Key: "secret"},
	}
}

func serve(t *testing.T, cfg Config) (*coordinatorapi.Client, context.CancelFunc, <-chan error) {
	t.Helper()
	server, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	conn, err := platformgrpc.DialWithHealth(ctx, server.Addr(), coordinatorapi.ServiceName, 5*time.Second, nil)
	if err != nil {
		cancel()
		t.Fatalf("dial coordinator: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return coordinatorapi.NewClient(conn), cancel, done
}

func TestServeCreatesAndExecutes(t *testing.T) {
	client, cancel, done := serve(t, testConfig(t))
	ctx := coordinatorapi.AsPrincipal(context.Background(), "alice")

	created, err := client.CreateTransaction(ctx, &coordinatorapi.CreateTransactionRequest{
		Kind:         "ASSET_TRANSFER",
		Jurisdiction: "US-NY",
		AssetIDs:     []string{"asset-1"},
		Parties: []coordinatorapi.Party{
			{Principal: "alice", Role: "SELLER"},
			{Principal: "bob", Role: "BUYER"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.Transaction.TransactionID
	if _, err := client.SignTransaction(coordinatorapi.AsPrincipal(context.Background(), "bob"),
		&coordinatorapi.SignTransactionRequest{TransactionID: id}); err != nil {
		t.Fatalf("sign: %v", err)
	}
	executed, err := client.ExecuteTransaction(ctx, &coordinatorapi.ExecuteTransactionRequest{TransactionID: id})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if executed.Transaction.Status != "EXECUTED" {
		t.Fatalf("status = %s, want EXECUTED", executed.Transaction.Status)
	}
	report, err := client.VerifyAuditChain(coordinatorapi.AsPrincipal(context.Background(), "auditor"),
		&coordinatorapi.VerifyAuditChainRequest{TransactionID: id})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Status != "EXECUTED" {
		t.Fatalf("report status = %s", report.Status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeWithRedisLocks(t *testing.T) {
	redis := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.LockBackend = "REDIS"
	cfg.RedisAddr = redis.Addr()
	client, cancel, done := serve(t, cfg)
	defer func() {
		cancel()
		<-done
	}()

	created, err := client.CreateTransaction(coordinatorapi.AsPrincipal(context.Background(), "alice"), &coordinatorapi.CreateTransactionRequest{
		Kind:         "CLAIM",
		Jurisdiction: "US-NY",
		AssetIDs:     []string{"asset-2"},
		Parties:      []coordinatorapi.Party{{Principal: "alice"}, {Principal: "carol"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	signed, err := client.SignTransaction(coordinatorapi.AsPrincipal(context.Background(), "carol"),
		&coordinatorapi.SignTransactionRequest{TransactionID: created.Transaction.TransactionID})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Transaction.Status != "APPROVED" {
		t.Fatalf("status = %s, want APPROVED", signed.Transaction.Status)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuditKey = integrity.KeyConfig{}
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "audit keyring") {
		t.Fatalf("err = %v, want keyring error", err)
	}

	cfg = testConfig(t)
	cfg.LockBackend = "etcd"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected unknown lock backend error")
	}

	cfg = testConfig(t)
	cfg.SeedAssets = []string{"asset-1"}
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected seed asset error")
	}

	cfg = testConfig(t)
	cfg.TokenPublicKey = "not base64!"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected token key error")
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg, err := Config{}.normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Addr != defaultAddr || cfg.DBPath != defaultDBPath || cfg.LockBackend != LockMemory {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.CollaboratorTimeout <= 0 || cfg.LockExpiry <= 0 || cfg.KafkaTopic != defaultKafkaTopic {
		t.Fatalf("defaults = %+v", cfg)
	}
	if _, err := (Config{LockBackend: LockRedis}).normalized(); err == nil {
		t.Fatal("expected redis address error")
	}
}

func TestParseSeedAssets(t *testing.T) {
	assets, err := ParseSeedAssets([]string{" a1=alice ", "", "a2=bob:FROZEN"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("assets = %+v", assets)
	}
	if assets[0].Owner != "alice" || assets[0].Status != seedAssetStatus {
		t.Fatalf("first = %+v", assets[0])
	}
	if assets[1].Owner != "bob" || assets[1].Status != "FROZEN" {
		t.Fatalf("second = %+v", assets[1])
	}
	for _, bad := range []string{"=alice", "a3=", "a4"} {
		if _, err := ParseSeedAssets([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	rec := httptest.NewRecorder()
	server.metricsMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}

func TestServeRequiresInitializedServer(t *testing.T) {
	var server *Server
	if err := server.Serve(context.Background()); err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want initialization error", err)
	}
}
