// Package cmd holds the startup plumbing shared by assetflow commands:
// env-then-flags configuration and a traced run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/assetflow/internal/platform/config"
	"github.com/louisbranch/assetflow/internal/platform/otel"
)

// ServiceCoordinator names the transaction coordinator in logs and traces.
const ServiceCoordinator = "coordinator"

const defaultTraceFlushTimeout = 5 * time.Second

// Load fills a T from ASSETFLOW_ environment variables, registers its flags
// through bind with the env values as defaults, and parses args.
func Load[T any](fs *flag.FlagSet, args []string, bind func(cfg *T, fs *flag.FlagSet)) (T, error) {
	var cfg T
	if fs == nil {
		return cfg, errors.New("flag set is required")
	}
	if err := config.ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if bind != nil {
		bind(&cfg, fs)
	}
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Service runs one long-lived command with tracing installed.
type Service struct {
	Name string
	// Logger receives trace flush failures. Nil discards them.
	Logger *zap.Logger
	// FlushTimeout bounds the trace exporter shutdown.
	FlushTimeout time.Duration
}

// Run installs the tracer provider, runs fn and flushes spans when fn
// returns.
func (s Service) Run(ctx context.Context, fn func(context.Context) error) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	if fn == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	shutdown, err := otel.Setup(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		timeout := s.FlushTimeout
		if timeout <= 0 {
			timeout = defaultTraceFlushTimeout
		}
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("trace flush failed", zap.String("service", name), zap.Error(err))
		}
	}()
	return fn(ctx)
}
