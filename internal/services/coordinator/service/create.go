package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
	"github.com/louisbranch/assetflow/internal/services/coordinator/authz"
	"github.com/louisbranch/assetflow/internal/services/coordinator/compliance"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/ledger"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
)

// CreateInput proposes a transaction. The calling principal must be a party.
type CreateInput struct {
	Kind                transaction.Kind
	Jurisdiction        string
	AssetIDs            []string
	Parties             []transaction.PartyInput
	MetadataFingerprint string
	ExpiresAt           *time.Time
}

// CreateTransaction validates the proposal, confirms every asset exists,
// gates it on compliance and stores it with the creator signed. Nothing is
// stored when any step fails.
func (c *Coordinator) CreateTransaction(ctx context.Context, in CreateInput) (result Transaction, err error) {
	ctx, finish := c.observe(ctx, "create", "")
	defer finish(&err)

	actor := requestctx.PrincipalFromContext(ctx)
	if err := c.authorize(ctx, actor, authz.ActionCreate, transaction.State{}); err != nil {
		return Transaction{}, err
	}
	transactionID, err := c.newID()
	if err != nil {
		return Transaction{}, err
	}
	cmd := transaction.Create{
		TransactionID:       transactionID,
		ActorID:             actor,
		Kind:                in.Kind,
		Jurisdiction:        in.Jurisdiction,
		AssetIDs:            in.AssetIDs,
		Parties:             in.Parties,
		MetadataFingerprint: in.MetadataFingerprint,
		ExpiresAt:           in.ExpiresAt,
	}

	// Validate before spending collaborator calls.
	at := c.clock()
	proposal := transaction.Decide(transaction.State{}, cmd, fixedClock(at))
	if proposal.Rejected() {
		return Transaction{}, proposal.Err()
	}
	draft := transaction.FoldAll(transaction.State{}, proposal.Events)

	verdict, err := c.precheckCreate(ctx, actor, draft)
	if err != nil {
		return Transaction{}, err
	}
	if !verdict.Compliant {
		return Transaction{}, complianceRejected(compliance.OperationCreate, draft.Jurisdiction, verdict)
	}

	cmd.ComplianceRefs = verdict.VerificationIDs
	decision := transaction.Decide(transaction.State{}, cmd, fixedClock(at))
	if decision.Rejected() {
		return Transaction{}, decision.Err()
	}
	stored, err := c.persist(ctx, transaction.State{}, decision.Events)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return Transaction{}, apperrors.WrapWithMetadata(apperrors.CodeVersionConflict,
				"transaction id collision", map[string]string{apperrors.MetadataRetryable: "true"}, err)
		}
		return Transaction{}, err
	}
	return c.view(stored, at), nil
}

// precheckCreate confirms every asset exists and evaluates creation
// compliance, concurrently and with bounded fan-out.
func (c *Coordinator) precheckCreate(ctx context.Context, actor string, draft transaction.State) (compliance.Verdict, error) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.fanOut + 1)

	var verdict compliance.Verdict
	group.Go(func() error {
		err := c.collaborate(gctx, func(ctx context.Context) error {
			var err error
			verdict, err = c.compliance.Evaluate(ctx, compliance.Request{
				Jurisdiction: draft.Jurisdiction,
				Operation:    compliance.OperationCreate,
				Data: map[string]string{
					"caller":         actor,
					"kind":           string(draft.Kind),
					"transaction_id": draft.ID,
				},
			})
			return err
		})
		if err != nil {
			c.metrics.CollaboratorFailure("compliance", string(compliance.OperationCreate))
			return unavailable("compliance", string(compliance.OperationCreate), err)
		}
		return nil
	})
	for _, assetID := range draft.AssetIDs {
		group.Go(func() error {
			err := c.collaborate(gctx, func(ctx context.Context) error {
				_, err := c.ledger.GetAsset(ctx, assetID)
				return err
			})
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ledger.ErrAssetNotFound):
				return apperrors.WrapWithMetadata(apperrors.CodeAssetNotFound, "asset does not exist",
					map[string]string{"asset_id": assetID}, err)
			default:
				c.metrics.CollaboratorFailure("ledger", "get_asset")
				return unavailable("ledger", "get_asset", err)
			}
		})
	}
	if err := group.Wait(); err != nil {
		return compliance.Verdict{}, err
	}
	return verdict, nil
}

func complianceRejected(operation compliance.Operation, jurisdiction string, verdict compliance.Verdict) error {
	reason := strings.TrimSpace(verdict.Reason)
	if reason == "" {
		reason = "not compliant"
	}
	return apperrors.WithMetadata(apperrors.CodeComplianceRejected, "compliance gate rejected the operation",
		map[string]string{
			"operation":        string(operation),
			"jurisdiction":     jurisdiction,
			"verification_ids": strings.Join(verdict.VerificationIDs, ","),
			"reason":           reason,
		})
}
