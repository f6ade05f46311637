// Package coordinator parses coordinator flags and launches the service.
package coordinator

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/assetflow/internal/platform/breaker"
	entrypoint "github.com/louisbranch/assetflow/internal/platform/cmd"
	"github.com/louisbranch/assetflow/internal/platform/config"
	"github.com/louisbranch/assetflow/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/assetflow/internal/platform/grpc"
	"github.com/louisbranch/assetflow/internal/platform/logging"
	"github.com/louisbranch/assetflow/internal/platform/timeouts"
	coordinatorapi "github.com/louisbranch/assetflow/internal/services/coordinator/api/grpc/coordinator"
	server "github.com/louisbranch/assetflow/internal/services/coordinator/app"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
)

// Config holds coordinator command configuration.
type Config struct {
	Port        int    `env:"ASSETFLOW_COORDINATOR_PORT" envDefault:"8095"`
	MetricsPort int    `env:"ASSETFLOW_COORDINATOR_METRICS_PORT" envDefault:"9095"`
	DBPath      string `env:"ASSETFLOW_COORDINATOR_DB_PATH" envDefault:"data/coordinator.db"`

	CollaboratorTimeout  time.Duration  `env:"ASSETFLOW_COLLABORATOR_TIMEOUT" envDefault:"3s"`
	LedgerURL            string         `env:"ASSETFLOW_LEDGER_URL"`
	SeedAssets           string         `env:"ASSETFLOW_LEDGER_SEED_ASSETS"`
	ComplianceURL        string         `env:"ASSETFLOW_COMPLIANCE_URL"`
	BlockedJurisdictions string         `env:"ASSETFLOW_COMPLIANCE_BLOCKED_JURISDICTIONS"`
	Breaker              breaker.Config `envPrefix:"ASSETFLOW_COLLABORATOR_BREAKER_"`

	Auditors string              `env:"ASSETFLOW_AUDITORS"`
	AuditKey integrity.KeyConfig

	LockBackend string        `env:"ASSETFLOW_LOCK_BACKEND" envDefault:"memory"`
	RedisAddr   string        `env:"ASSETFLOW_REDIS_ADDR"`
	LockExpiry  time.Duration `env:"ASSETFLOW_LOCK_EXPIRY" envDefault:"10s"`

	TokenPublicKey string `env:"ASSETFLOW_TOKEN_PUBLIC_KEY"`
	TokenIssuer    string `env:"ASSETFLOW_TOKEN_ISSUER"`
	TokenAudience  string `env:"ASSETFLOW_TOKEN_AUDIENCE" envDefault:"assetflow"`

	KafkaBrokers      string        `env:"ASSETFLOW_KAFKA_BROKERS"`
	KafkaTopic        string        `env:"ASSETFLOW_KAFKA_TOPIC" envDefault:"assetflow.audit"`
	RelayPollInterval time.Duration `env:"ASSETFLOW_RELAY_POLL_INTERVAL" envDefault:"1s"`

	Log logging.Config

	// Probe checks a running coordinator's health and exits.
	Probe     bool
	ProbeAddr string `env:"ASSETFLOW_COORDINATOR_ADDR"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, bindFlags)
}

func bindFlags(cfg *Config, fs *flag.FlagSet) {
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The coordinator gRPC server port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "The Prometheus metrics port (0 disables it)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The coordinator SQLite database path")
	fs.DurationVar(&cfg.CollaboratorTimeout, "collaborator-timeout", cfg.CollaboratorTimeout, "Timeout for each ledger and compliance call")
	fs.StringVar(&cfg.LedgerURL, "ledger-url", cfg.LedgerURL, `Asset ledger base URL ("discover" for the in-network default, empty for in-memory)`)
	fs.StringVar(&cfg.SeedAssets, "seed-assets", cfg.SeedAssets, "Comma separated id=owner[:status] assets for the in-memory ledger")
	fs.StringVar(&cfg.ComplianceURL, "compliance-url", cfg.ComplianceURL, `Compliance gate base URL ("discover" for the in-network default, empty for the local policy)`)
	fs.StringVar(&cfg.BlockedJurisdictions, "blocked-jurisdictions", cfg.BlockedJurisdictions, "Comma separated jurisdictions the local policy rejects")
	fs.StringVar(&cfg.Auditors, "auditors", cfg.Auditors, "Comma separated principals allowed to read every transaction")
	fs.StringVar(&cfg.LockBackend, "lock-backend", cfg.LockBackend, "Transaction lock backend: memory or redis")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis lock backend")
	fs.StringVar(&cfg.KafkaBrokers, "kafka-brokers", cfg.KafkaBrokers, "Comma separated Kafka brokers for the audit relay (empty disables it)")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic for audit events")
	fs.BoolVar(&cfg.Probe, "probe", false, "Check the health of a running coordinator and exit")
	fs.StringVar(&cfg.ProbeAddr, "probe-addr", cfg.ProbeAddr, "Coordinator address checked by -probe")
}

// RuntimeConfig maps command configuration onto the server runtime.
func (c Config) RuntimeConfig() server.Config {
	runtime := server.Config{
		Addr:                 fmt.Sprintf(":%d", c.Port),
		DBPath:               c.DBPath,
		CollaboratorTimeout:  c.CollaboratorTimeout,
		LedgerURL:            discovery.ResolveHTTPBaseURL(c.LedgerURL, discovery.ServiceAssetLedger),
		SeedAssets:           config.SplitList(c.SeedAssets),
		ComplianceURL:        discovery.ResolveHTTPBaseURL(c.ComplianceURL, discovery.ServiceComplianceGate),
		BlockedJurisdictions: config.SplitList(c.BlockedJurisdictions),
		Breaker:              c.Breaker,
		Auditors:             config.SplitList(c.Auditors),
		AuditKey:             c.AuditKey,
		LockBackend:          c.LockBackend,
		RedisAddr:            c.RedisAddr,
		LockExpiry:           c.LockExpiry,
		TokenPublicKey:       c.TokenPublicKey,
		TokenIssuer:          c.TokenIssuer,
		TokenAudience:        c.TokenAudience,
		KafkaBrokers:         config.SplitList(c.KafkaBrokers),
		KafkaTopic:           c.KafkaTopic,
		RelayPollInterval:    c.RelayPollInterval,
	}
	if c.MetricsPort > 0 {
		runtime.MetricsAddr = fmt.Sprintf(":%d", c.MetricsPort)
	}
	if runtime.LockBackend == server.LockRedis {
		runtime.RedisAddr = discovery.OrDefaultTCPAddr(c.RedisAddr, discovery.ServiceRedis)
	}
	return runtime
}

// Run starts the coordinator, or checks a running one when Probe is set.
func Run(ctx context.Context, cfg Config) error {
	logCfg := cfg.Log
	logCfg.Service = entrypoint.ServiceCoordinator
	logger, _, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Probe {
		return probe(ctx, cfg, logger)
	}
	svc := entrypoint.Service{Name: entrypoint.ServiceCoordinator, Logger: logger}
	return svc.Run(ctx, func(ctx context.Context) error {
		return server.Run(ctx, cfg.RuntimeConfig(), logger)
	})
}

func probe(ctx context.Context, cfg Config, logger *zap.Logger) error {
	addr := cfg.ProbeAddr
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", cfg.Port)
	}
	conn, err := platformgrpc.DialWithHealth(ctx, addr, coordinatorapi.ServiceName, timeouts.GRPCDial, logger)
	if err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}
	logger.Info("coordinator healthy", zap.String("addr", addr))
	return conn.Close()
}
