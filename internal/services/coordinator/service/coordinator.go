// Package service implements the transaction coordinator: it serializes work
// per transaction, consults the authorization policy and the pure decider,
// calls the compliance gate and asset ledger, and persists the outcome with
// its audit trail.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/platform/id"
	"github.com/louisbranch/assetflow/internal/platform/lock"
	"github.com/louisbranch/assetflow/internal/platform/logging"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
	"github.com/louisbranch/assetflow/internal/platform/timeouts"
	"github.com/louisbranch/assetflow/internal/services/coordinator/authz"
	"github.com/louisbranch/assetflow/internal/services/coordinator/compliance"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/ledger"
	"github.com/louisbranch/assetflow/internal/services/coordinator/observability/metrics"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
)

const tracerName = "github.com/louisbranch/assetflow/internal/services/coordinator/service"

// DefaultAssetFanOut bounds concurrent asset lookups during creation.
const DefaultAssetFanOut = 8

var (
	// ErrStoreRequired indicates a missing store.
	ErrStoreRequired = errors.New("store is required")
	// ErrLedgerRequired indicates a missing asset ledger.
	ErrLedgerRequired = errors.New("asset ledger is required")
	// ErrComplianceRequired indicates a missing compliance gate.
	ErrComplianceRequired = errors.New("compliance gate is required")
)

// Deps wires the coordinator's collaborators.
type Deps struct {
	Store      storage.Store
	Ledger     ledger.Ledger
	Compliance compliance.Gate
	// Locker serializes operations per transaction. Defaults to an
	// in-process keyed mutex.
	Locker     lock.Locker
	Authorizer authz.Authorizer
	// Keyring verifies audit signatures in VerifyAuditChain.
	Keyring *integrity.Keyring
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Now     func() time.Time
	NewID   func() (string, error)
	// CollaboratorTimeout bounds each ledger and compliance call.
	CollaboratorTimeout time.Duration
	AssetFanOut         int
}

// Coordinator owns the transaction state machine.
type Coordinator struct {
	store      storage.Store
	ledger     ledger.Ledger
	compliance compliance.Gate
	locker     lock.Locker
	authorizer authz.Authorizer
	keyring    *integrity.Keyring
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() (string, error)
	timeout    time.Duration
	fanOut     int
}

// New validates deps and applies defaults.
func New(deps Deps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, ErrStoreRequired
	}
	if deps.Ledger == nil {
		return nil, ErrLedgerRequired
	}
	if deps.Compliance == nil {
		return nil, ErrComplianceRequired
	}
	c := &Coordinator{
		store:      deps.Store,
		ledger:     deps.Ledger,
		compliance: deps.Compliance,
		locker:     deps.Locker,
		authorizer: deps.Authorizer,
		keyring:    deps.Keyring,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     otel.Tracer(tracerName),
		now:        deps.Now,
		newID:      deps.NewID,
		timeout:    deps.CollaboratorTimeout,
		fanOut:     deps.AssetFanOut,
	}
	if c.locker == nil {
		c.locker = lock.NewMemory()
	}
	if c.authorizer == nil {
		c.authorizer = authz.NewPartyPolicy()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = id.NewID
	}
	if c.timeout <= 0 {
		c.timeout = timeouts.Collaborator
	}
	if c.fanOut <= 0 {
		c.fanOut = DefaultAssetFanOut
	}
	return c, nil
}

// Transaction is the read view of an aggregate at a point in time.
type Transaction struct {
	State transaction.State
	// Status applies lazy expiry; State.Status is what is persisted.
	Status transaction.Status
}

func (c *Coordinator) view(state transaction.State, at time.Time) Transaction {
	return Transaction{State: state, Status: state.EffectiveStatus(at)}
}

// clock returns the coordinator time truncated to the stored precision.
func (c *Coordinator) clock() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// observe starts a span and returns a finisher that records metrics and the
// span status from the final error.
func (c *Coordinator) observe(ctx context.Context, operation, transactionID string) (context.Context, func(*error)) {
	ctx, span := c.tracer.Start(ctx, "coordinator."+operation,
		trace.WithAttributes(attribute.String("assetflow.transaction_id", transactionID)))
	started := time.Now()
	return ctx, func(errp *error) {
		outcome := "OK"
		if errp != nil && *errp != nil {
			outcome = string(apperrors.GetCode(*errp))
			span.RecordError(*errp)
			span.SetStatus(codes.Error, outcome)
		}
		c.metrics.Operation(operation, outcome, time.Since(started))
		span.End()
	}
}

func lockKey(transactionID string) string {
	return "transaction:" + transactionID
}

// withTransaction runs fn while holding the transaction's lock.
func (c *Coordinator) withTransaction(ctx context.Context, transactionID string, fn func(context.Context) error) error {
	err := c.locker.WithLock(ctx, lockKey(transactionID), fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperrors.WrapWithMetadata(apperrors.CodeCollaboratorUnavailable, "transaction lock not acquired",
			map[string]string{"collaborator": "lock", apperrors.MetadataRetryable: "true"}, err)
	}
	return err
}

// load reads the aggregate and maps storage errors.
func (c *Coordinator) load(ctx context.Context, transactionID string) (transaction.State, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return transaction.State{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"transaction id is required", map[string]string{"field": "transaction_id"})
	}
	state, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return transaction.State{}, storageError(err)
	}
	return state, nil
}

func (c *Coordinator) authorize(ctx context.Context, principal string, action authz.Action, state transaction.State) error {
	return c.authorizer.Authorize(ctx, principal, action, state).Err()
}

// persist writes an accepted decision and reports its transitions.
func (c *Coordinator) persist(ctx context.Context, state transaction.State, events []transaction.Event) (transaction.State, error) {
	next := transaction.FoldAll(state, events)
	stored, _, err := c.store.ApplyWrite(ctx, storage.Write{
		State:           next,
		ExpectedVersion: state.Version,
		Events:          events,
	})
	if err != nil {
		return transaction.State{}, storageError(err)
	}
	logger := logging.WithContext(ctx, c.logger)
	for _, evt := range events {
		if evt.Transition() {
			c.metrics.Transition(string(evt.From), string(evt.To))
		}
		logger.Info("transaction event recorded",
			zap.String("transaction_id", evt.TransactionID),
			zap.String("event_type", string(evt.Type)),
			zap.String("actor_id", evt.ActorID),
			zap.String("from_status", string(evt.From)),
			zap.String("to_status", string(evt.To)),
			zap.Int64("version", stored.Version),
		)
	}
	return stored, nil
}

// mutate is the shared path for single-step commands: lock, load,
// authorize, decide and persist.
func (c *Coordinator) mutate(ctx context.Context, transactionID string, action authz.Action, cmd transaction.Command) (Transaction, error) {
	actor := requestctx.PrincipalFromContext(ctx)
	var result Transaction
	err := c.withTransaction(ctx, transactionID, func(ctx context.Context) error {
		state, err := c.load(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := c.authorize(ctx, actor, action, state); err != nil {
			return err
		}
		at := c.clock()
		decision := transaction.Decide(state, cmd, fixedClock(at))
		if decision.Rejected() {
			return decision.Err()
		}
		stored, err := c.persist(ctx, state, decision.Events)
		if err != nil {
			return err
		}
		result = c.view(stored, at)
		return nil
	})
	return result, err
}

// collaborate runs fn under the collaborator timeout.
func (c *Coordinator) collaborate(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(ctx)
}

func unavailable(collaborator, operation string, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeCollaboratorUnavailable,
		fmt.Sprintf("%s %s failed", collaborator, operation),
		map[string]string{
			"collaborator":              collaborator,
			"operation":                 operation,
			apperrors.MetadataRetryable: "true",
		}, err)
}

func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.WrapWithMetadata(apperrors.CodeNotFound, "transaction not found",
			map[string]string{"resource": "transaction"}, err)
	case errors.Is(err, storage.ErrVersionConflict):
		return apperrors.WrapWithMetadata(apperrors.CodeVersionConflict, "transaction changed concurrently",
			map[string]string{apperrors.MetadataRetryable: "true"}, err)
	case errors.Is(err, storage.ErrInvalidQuery):
		return apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument, err.Error(),
			map[string]string{"field": "query"}, err)
	default:
		return err
	}
}

func retryableFlag(retryable bool) string {
	return strconv.FormatBool(retryable)
}
