package app

import (
	"context"
	"fmt"
	"strings"

	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/louisbranch/assetflow/internal/platform/lock"
	"github.com/louisbranch/assetflow/internal/services/coordinator/compliance"
	"github.com/louisbranch/assetflow/internal/services/coordinator/ledger"
)

const seedAssetStatus = "ACTIVE"

func (s *Server) buildLedger() (ledger.Ledger, error) {
	if strings.TrimSpace(s.cfg.LedgerURL) != "" {
		client, err := ledger.NewClient(ledger.ClientConfig{
			BaseURL: s.cfg.LedgerURL,
			Timeout: s.cfg.CollaboratorTimeout,
			Breaker: s.cfg.Breaker,
		}, s.logger.Named("ledger"))
		if err != nil {
			return nil, fmt.Errorf("build ledger client: %w", err)
		}
		return client, nil
	}
	assets, err := ParseSeedAssets(s.cfg.SeedAssets)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("using in-memory asset ledger", zap.Int("seeded_assets", len(assets)))
	return ledger.NewMemory(assets...), nil
}

// ParseSeedAssets reads id=owner or id=owner:status entries for the
// in-memory ledger.
func ParseSeedAssets(entries []string) ([]ledger.Asset, error) {
	assets := make([]ledger.Asset, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, rest, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid seed asset %q", entry)
		}
		owner, status, _ := strings.Cut(rest, ":")
		owner = strings.TrimSpace(owner)
		status = strings.TrimSpace(status)
		if owner == "" {
			return nil, fmt.Errorf("seed asset %q has no owner", id)
		}
		if status == "" {
			status = seedAssetStatus
		}
		assets = append(assets, ledger.Asset{ID: id, Owner: owner, Status: status})
	}
	return assets, nil
}

func (s *Server) buildCompliance() (compliance.Gate, error) {
	if strings.TrimSpace(s.cfg.ComplianceURL) != "" {
		client, err := compliance.NewClient(compliance.ClientConfig{
			BaseURL: s.cfg.ComplianceURL,
			Timeout: s.cfg.CollaboratorTimeout,
			Breaker: s.cfg.Breaker,
		}, s.logger.Named("compliance"))
		if err != nil {
			return nil, fmt.Errorf("build compliance client: %w", err)
		}
		return client, nil
	}
	return compliance.NewPolicy(s.cfg.BlockedJurisdictions...), nil
}

func (s *Server) buildLocker(ctx context.Context) (lock.Locker, error) {
	if s.cfg.LockBackend != LockRedis {
		return lock.NewMemory(), nil
	}
	client := goredislib.NewClient(&goredislib.Options{Addr: s.cfg.RedisAddr})
	s.closers = append(s.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", s.cfg.RedisAddr, err)
	}
	opts := lock.DefaultRedisOptions()
	opts.Expiry = s.cfg.LockExpiry
	locker, err := lock.NewRedis(client, opts, s.logger.Named("lock"))
	if err != nil {
		return nil, fmt.Errorf("build redis locker: %w", err)
	}
	return locker, nil
}
