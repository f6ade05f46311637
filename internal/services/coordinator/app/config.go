package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/assetflow/internal/platform/breaker"
	"github.com/louisbranch/assetflow/internal/platform/timeouts"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
)

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config controls coordinator startup and its collaborators.
type Config struct {
	// Addr is the gRPC listen address.
	Addr string
	// MetricsAddr serves /metrics. Empty disables the metrics listener.
	MetricsAddr string
	DBPath      string

	CollaboratorTimeout time.Duration
	// LedgerURL selects the HTTP ledger. Empty uses an in-memory ledger
	// seeded with SeedAssets.
	LedgerURL  string
	SeedAssets []string
	// ComplianceURL selects the HTTP gate. Empty uses the jurisdiction
	// policy built from BlockedJurisdictions.
	ComplianceURL        string
	BlockedJurisdictions []string
	Breaker              breaker.Config

	Auditors []string
	AuditKey integrity.KeyConfig

	LockBackend string
	RedisAddr   string
	LockExpiry  time.Duration

	TokenPublicKey string
	TokenIssuer    string
	TokenAudience  string

	// KafkaBrokers enables the audit relay when set.
	KafkaBrokers      []string
	KafkaTopic        string
	RelayPollInterval time.Duration
}

const (
	defaultAddr       = ":8095"
	defaultDBPath     = "data/coordinator.db"
	defaultKafkaTopic = "assetflow.audit"
)

func (c Config) normalized() (Config, error) {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = defaultAddr
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = defaultDBPath
	}
	if c.CollaboratorTimeout <= 0 {
		c.CollaboratorTimeout = timeouts.Collaborator
	}
	if c.LockExpiry <= 0 {
		c.LockExpiry = timeouts.LockExpiry
	}
	if strings.TrimSpace(c.KafkaTopic) == "" {
		c.KafkaTopic = defaultKafkaTopic
	}
	switch strings.ToLower(strings.TrimSpace(c.LockBackend)) {
	case "", LockMemory:
		c.LockBackend = LockMemory
	case LockRedis:
		c.LockBackend = LockRedis
		if strings.TrimSpace(c.RedisAddr) == "" {
			return Config{}, fmt.Errorf("redis address is required for the redis lock backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown lock backend %q", c.LockBackend)
	}
	return c, nil
}
