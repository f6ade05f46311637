package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/platform/lock"
	"github.com/louisbranch/assetflow/internal/platform/logging"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
	"github.com/louisbranch/assetflow/internal/services/coordinator/authz"
	"github.com/louisbranch/assetflow/internal/services/coordinator/compliance"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/ledger"
)

// ExecuteResult reports the executed transaction with per-asset outcomes.
type ExecuteResult struct {
	Transaction Transaction
	Outcomes    []transaction.AssetOutcome
}

// mutationFailure describes the first asset step that failed.
type mutationFailure struct {
	assetID   string
	cause     error
	retryable bool
}

// ExecuteTransaction re-checks compliance and applies the kind's mutation to
// every asset. Either every asset is mutated and the transaction becomes
// EXECUTED, or applied mutations are compensated and status stays APPROVED.
func (c *Coordinator) ExecuteTransaction(ctx context.Context, transactionID string, data transaction.ExecutionData) (result ExecuteResult, err error) {
	ctx, finish := c.observe(ctx, "execute", transactionID)
	defer finish(&err)

	actor := requestctx.PrincipalFromContext(ctx)
	err = c.withTransaction(ctx, transactionID, func(ctx context.Context) error {
		state, err := c.load(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := c.authorize(ctx, actor, authz.ActionExecute, state); err != nil {
			return err
		}
		at := c.clock()
		if guard := transaction.Decide(state, transaction.Execute{ActorID: actor}, fixedClock(at)); guard.Rejected() {
			return guard.Err()
		}
		mutation, err := transaction.PlanMutation(state, data)
		if err != nil {
			return err
		}

		verdict, err := c.evaluateExecute(ctx, actor, state)
		if err != nil {
			return err
		}
		if !verdict.Compliant {
			record := transaction.Decide(state, transaction.RecordComplianceRejection{
				ActorID:         actor,
				Operation:       string(compliance.OperationExecute),
				VerificationIDs: verdict.VerificationIDs,
				Reason:          verdict.Reason,
			}, fixedClock(at))
			if _, err := c.persist(ctx, state, record.Events); err != nil {
				return err
			}
			return complianceRejected(compliance.OperationExecute, state.Jurisdiction, verdict)
		}

		// From the first mutation on, the caller going away must not abort
		// the run; only a lost transaction lock stops further mutations.
		held := ctx
		ctx = context.WithoutCancel(ctx)
		outcomes, failure := c.applyMutations(ctx, held, state.ID, state.AssetIDs, mutation)
		if failure != nil {
			return c.recordFailure(ctx, state, actor, at, outcomes, failure)
		}

		complete := transaction.Decide(state, transaction.CompleteExecution{
			ActorID:        actor,
			Outcomes:       outcomes,
			ComplianceRefs: verdict.VerificationIDs,
		}, fixedClock(at))
		if complete.Rejected() {
			return complete.Err()
		}
		stored, err := c.persist(ctx, state, complete.Events)
		if err != nil {
			// The ledger already holds the new state; undo it so the
			// aggregate and the assets stay consistent.
			logging.WithContext(ctx, c.logger).Error("persist executed transaction failed; compensating",
				zap.String("transaction_id", state.ID), zap.Error(err))
			c.compensate(ctx, state.ID, outcomes)
			return err
		}
		result = ExecuteResult{Transaction: c.view(stored, at), Outcomes: outcomes}
		return nil
	})
	return result, err
}

func (c *Coordinator) evaluateExecute(ctx context.Context, actor string, state transaction.State) (compliance.Verdict, error) {
	var verdict compliance.Verdict
	err := c.collaborate(ctx, func(ctx context.Context) error {
		var err error
		verdict, err = c.compliance.Evaluate(ctx, compliance.Request{
			Jurisdiction: state.Jurisdiction,
			Operation:    compliance.OperationExecute,
			Data: map[string]string{
				"caller":         actor,
				"kind":           string(state.Kind),
				"transaction_id": state.ID,
				"asset_ids":      strings.Join(state.AssetIDs, ","),
			},
		})
		return err
	})
	if err != nil {
		c.metrics.CollaboratorFailure("compliance", string(compliance.OperationExecute))
		logging.WithContext(ctx, c.logger).Warn("compliance evaluation failed",
			zap.String("transaction_id", state.ID), zap.Error(err))
		return compliance.Verdict{}, unavailable("compliance", string(compliance.OperationExecute), err)
	}
	return verdict, nil
}

// applyMutations mutates assets in stored order and stops at the first
// failure, compensating what was already applied. ctx must not carry caller
// cancellation; held is the lock-scoped context and is consulted only for
// lock loss before each asset.
func (c *Coordinator) applyMutations(ctx, held context.Context, transactionID string, assetIDs []string, mutation transaction.Mutation) ([]transaction.AssetOutcome, *mutationFailure) {
	outcomes := make([]transaction.AssetOutcome, len(assetIDs))
	for i, assetID := range assetIDs {
		outcomes[i] = transaction.AssetOutcome{AssetID: assetID, Mutation: mutation, Outcome: transaction.OutcomeSkipped}
	}
	for i, assetID := range assetIDs {
		if cause := context.Cause(held); errors.Is(cause, lock.ErrLockLost) {
			logging.WithContext(ctx, c.logger).Error("transaction lock lost during execution",
				zap.String("transaction_id", transactionID),
				zap.String("asset_id", assetID),
				zap.Error(cause))
			c.compensate(ctx, transactionID, outcomes[:i])
			return outcomes, &mutationFailure{assetID: assetID, cause: cause, retryable: true}
		}
		var snapshot ledger.Asset
		err := c.collaborate(ctx, func(ctx context.Context) error {
			var err error
			if snapshot, err = c.ledger.GetAsset(ctx, assetID); err != nil {
				return err
			}
			return c.applyMutation(ctx, assetID, mutation)
		})
		outcomes[i].PreviousOwner = snapshot.Owner
		outcomes[i].PreviousStatus = snapshot.Status
		if err != nil {
			outcomes[i].Outcome = transaction.OutcomeFailed
			outcomes[i].Error = err.Error()
			c.metrics.CollaboratorFailure("ledger", string(mutation.Type))
			logging.WithContext(ctx, c.logger).Warn("asset mutation failed",
				zap.String("transaction_id", transactionID),
				zap.String("asset_id", assetID),
				zap.String("mutation", string(mutation.Type)),
				zap.Error(err))
			c.compensate(ctx, transactionID, outcomes[:i])
			return outcomes, &mutationFailure{assetID: assetID, cause: err, retryable: ledger.Transient(err)}
		}
		outcomes[i].Outcome = transaction.OutcomeApplied
	}
	return outcomes, nil
}

func (c *Coordinator) applyMutation(ctx context.Context, assetID string, mutation transaction.Mutation) error {
	if mutation.Type == transaction.MutationTransfer {
		return c.ledger.TransferAsset(ctx, assetID, mutation.NewOwner)
	}
	return c.ledger.UpdateStatus(ctx, assetID, mutation.Status)
}

// compensate restores applied assets to their snapshots in reverse order.
// It runs detached from caller cancellation once mutations have begun.
func (c *Coordinator) compensate(ctx context.Context, transactionID string, outcomes []transaction.AssetOutcome) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, c.logger)
	for i := len(outcomes) - 1; i >= 0; i-- {
		outcome := &outcomes[i]
		if outcome.Outcome != transaction.OutcomeApplied {
			continue
		}
		undo := transaction.Mutation{Type: outcome.Mutation.Type, NewOwner: outcome.PreviousOwner, Status: outcome.PreviousStatus}
		err := c.collaborate(ctx, func(ctx context.Context) error {
			return c.applyMutation(ctx, outcome.AssetID, undo)
		})
		if err != nil {
			outcome.Outcome = transaction.OutcomeCompensationFailed
			outcome.Error = err.Error()
			c.metrics.CollaboratorFailure("ledger", "compensate")
			logger.Error("asset compensation failed",
				zap.String("transaction_id", transactionID),
				zap.String("asset_id", outcome.AssetID),
				zap.Error(err))
			continue
		}
		outcome.Outcome = transaction.OutcomeCompensated
	}
}

// recordFailure appends the execution_failed audit entry and builds the
// caller-facing error.
func (c *Coordinator) recordFailure(ctx context.Context, state transaction.State, actor string, at time.Time, outcomes []transaction.AssetOutcome, failure *mutationFailure) error {
	retryable := failure.retryable
	for _, outcome := range outcomes {
		if outcome.Outcome == transaction.OutcomeCompensationFailed {
			retryable = false
		}
	}
	decision := transaction.Decide(state, transaction.FailExecution{
		ActorID:       actor,
		FailedAssetID: failure.assetID,
		Cause:         failure.cause.Error(),
		Retryable:     retryable,
		Outcomes:      outcomes,
	}, fixedClock(at))
	if !decision.Rejected() {
		if _, err := c.persist(ctx, state, decision.Events); err != nil {
			logging.WithContext(ctx, c.logger).Error("record execution failure",
				zap.String("transaction_id", state.ID), zap.Error(err))
		}
	}

	encoded, _ := json.Marshal(outcomes)
	return apperrors.WrapWithMetadata(apperrors.CodeAssetMutationFailed, "asset mutation failed",
		map[string]string{
			"asset_id":                  failure.assetID,
			"cause":                     failure.cause.Error(),
			"outcomes":                  string(encoded),
			apperrors.MetadataRetryable: retryableFlag(retryable),
		}, failure.cause)
}
