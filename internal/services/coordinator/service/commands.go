package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/louisbranch/assetflow/internal/platform/logging"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
	"github.com/louisbranch/assetflow/internal/services/coordinator/authz"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
)

// SignTransaction records the caller's signature and advances status.
func (c *Coordinator) SignTransaction(ctx context.Context, transactionID, evidence string) (result Transaction, err error) {
	ctx, finish := c.observe(ctx, "sign", transactionID)
	defer finish(&err)
	return c.mutate(ctx, transactionID, authz.ActionSign, transaction.Sign{
		ActorID:  requestctx.PrincipalFromContext(ctx),
		Evidence: evidence,
	})
}

// CancelTransaction withdraws a transaction that was not executed.
func (c *Coordinator) CancelTransaction(ctx context.Context, transactionID, reason string) (result Transaction, err error) {
	ctx, finish := c.observe(ctx, "cancel", transactionID)
	defer finish(&err)
	return c.mutate(ctx, transactionID, authz.ActionCancel, transaction.Cancel{
		ActorID: requestctx.PrincipalFromContext(ctx),
		Reason:  reason,
	})
}

// RejectTransaction lets an unsigned party decline.
func (c *Coordinator) RejectTransaction(ctx context.Context, transactionID, reason string) (result Transaction, err error) {
	ctx, finish := c.observe(ctx, "reject", transactionID)
	defer finish(&err)
	return c.mutate(ctx, transactionID, authz.ActionReject, transaction.Reject{
		ActorID: requestctx.PrincipalFromContext(ctx),
		Reason:  reason,
	})
}

// ExpireTransaction persists an expiry that reads already report lazily.
func (c *Coordinator) ExpireTransaction(ctx context.Context, transactionID string) (result Transaction, err error) {
	ctx, finish := c.observe(ctx, "expire", transactionID)
	defer finish(&err)
	result, err = c.mutate(ctx, transactionID, authz.ActionExpire, transaction.Expire{
		ActorID: requestctx.PrincipalFromContext(ctx),
	})
	if err == nil {
		logging.WithContext(ctx, c.logger).Info("transaction expiry persisted",
			zap.String("transaction_id", result.State.ID))
	}
	return result, err
}
