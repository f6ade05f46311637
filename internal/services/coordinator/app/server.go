// Package app wires the coordinator runtime: storage, collaborators, the
// gRPC API, the metrics endpoint and the audit relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/assetflow/internal/platform/timeouts"
	coordinatorapi "github.com/louisbranch/assetflow/internal/services/coordinator/api/grpc/coordinator"
	"github.com/louisbranch/assetflow/internal/services/coordinator/authz"
	"github.com/louisbranch/assetflow/internal/services/coordinator/observability/metrics"
	"github.com/louisbranch/assetflow/internal/services/coordinator/relay"
	"github.com/louisbranch/assetflow/internal/services/coordinator/service"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/sqlite"
)

// Server hosts the coordinator gRPC API and its background workers.
type Server struct {
	cfg        Config
	logger     *zap.Logger
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	metrics    *metrics.Metrics
	store      *sqlite.Store
	relay      *relay.Relay
	closers    []func() error
}

// New opens storage, builds collaborators and binds the gRPC listener.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: logger, metrics: metrics.New()}
	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) build(ctx context.Context) error {
	keyring, err := integrity.KeyringFromConfig(s.cfg.AuditKey)
	if err != nil {
		return fmt.Errorf("load audit keyring: %w", err)
	}
	store, err := openStore(s.cfg.DBPath, keyring)
	if err != nil {
		return err
	}
	s.store = store
	s.closers = append(s.closers, store.Close)

	assets, err := s.buildLedger()
	if err != nil {
		return err
	}
	gate, err := s.buildCompliance()
	if err != nil {
		return err
	}
	locker, err := s.buildLocker(ctx)
	if err != nil {
		return err
	}
	verifier, err := coordinatorapi.NewTokenVerifier(s.cfg.TokenIssuer, s.cfg.TokenAudience, s.cfg.TokenPublicKey)
	if err != nil {
		return fmt.Errorf("load token verifier: %w", err)
	}

	engine, err := service.New(service.Deps{
		Store:               store,
		Ledger:              assets,
		Compliance:          gate,
		Locker:              locker,
		Authorizer:          authz.NewPartyPolicy(s.cfg.Auditors...),
		Keyring:             keyring,
		Metrics:             s.metrics,
		Logger:              s.logger,
		CollaboratorTimeout: s.cfg.CollaboratorTimeout,
	})
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	if len(s.cfg.KafkaBrokers) > 0 {
		writer := relay.NewKafkaWriter(s.cfg.KafkaBrokers, s.cfg.KafkaTopic)
		s.closers = append(s.closers, writer.Close)
		s.relay, err = relay.New(store, writer, relay.Config{PollInterval: s.cfg.RelayPollInterval}, s.metrics, s.logger)
		if err != nil {
			return fmt.Errorf("build audit relay: %w", err)
		}
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(coordinatorapi.UnaryServerInterceptor(coordinatorapi.Identity{Verifier: verifier}, s.logger)),
	)
	s.health = health.NewServer()
	coordinatorapi.RegisterTransactionServiceServer(s.grpcServer, coordinatorapi.NewService(engine))
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	return nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a coordinator until ctx is cancelled.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	server, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server, the metrics endpoint and the relay until ctx
// is cancelled or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.grpcServer == nil {
		return errors.New("server is not initialized")
	}
	defer s.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info("coordinator listening", zap.String("addr", s.listener.Addr().String()))
		if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	if s.cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           s.metricsMux(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
		group.Go(func() error {
			s.logger.Info("metrics listening", zap.String("addr", s.cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
	if s.relay != nil {
		group.Go(func() error { return s.relay.Run(ctx) })
	}
	group.Go(func() error {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return nil
	})

	if err := s.store.Ping(ctx); err != nil {
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		s.logger.Warn("store ping failed", zap.Error(err))
	} else {
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(coordinatorapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	return group.Wait()
}

func (s *Server) metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Close releases every resource the server opened. It is safe to call more
// than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close coordinator resource", zap.Error(err))
		}
	}
	s.closers = nil
}

func openStore(path string, keyring *integrity.Keyring) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path, keyring)
	if err != nil {
		return nil, fmt.Errorf("open coordinator sqlite store: %w", err)
	}
	return store, nil
}
