package service

import (
	"context"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/platform/grpc/pagination"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
	"github.com/louisbranch/assetflow/internal/services/coordinator/authz"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var pageSizes = pagination.Limits{Default: defaultPageSize, Max: maxPageSize}

// Page is one page of transaction views.
type Page struct {
	Transactions  []Transaction
	NextPageToken string
}

// ListRequest selects a page of a lookup index.
type ListRequest struct {
	// Key is the party principal or asset id. For party listings it
	// defaults to the caller.
	Key       string
	PageSize  int32
	PageToken string
}

// AuditRequest selects a page of a transaction's audit events.
type AuditRequest struct {
	TransactionID string
	PageSize      int32
	PageToken     string
	OrderBy       string
	Filter        string
}

// GetTransaction returns the transaction as observed now. Expiry is
// reported, never written.
func (c *Coordinator) GetTransaction(ctx context.Context, transactionID string) (result Transaction, err error) {
	ctx, finish := c.observe(ctx, "get", transactionID)
	defer finish(&err)

	state, err := c.load(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if err := c.authorize(ctx, requestctx.PrincipalFromContext(ctx), authz.ActionRead, state); err != nil {
		return Transaction{}, err
	}
	return c.view(state, c.clock()), nil
}

// ListTransactionsByParty pages the transactions naming a principal. Entries
// the caller may not read are omitted.
func (c *Coordinator) ListTransactionsByParty(ctx context.Context, req ListRequest) (result Page, err error) {
	ctx, finish := c.observe(ctx, "list_by_party", "")
	defer finish(&err)

	caller := requestctx.PrincipalFromContext(ctx)
	if caller == "" {
		return Page{}, authz.Decision{ReasonCode: authz.ReasonDenyAnonymous}.Err()
	}
	principal := strings.TrimSpace(req.Key)
	if principal == "" {
		principal = caller
	}
	page, err := c.store.ListTransactionsByParty(ctx, principal, pageSizes.Clamp(req.PageSize), req.PageToken)
	if err != nil {
		return Page{}, storageError(err)
	}
	return c.readable(ctx, caller, page), nil
}

// ListTransactionsByAsset pages the transactions naming an asset. Entries
// the caller may not read are omitted.
func (c *Coordinator) ListTransactionsByAsset(ctx context.Context, req ListRequest) (result Page, err error) {
	ctx, finish := c.observe(ctx, "list_by_asset", "")
	defer finish(&err)

	caller := requestctx.PrincipalFromContext(ctx)
	if caller == "" {
		return Page{}, authz.Decision{ReasonCode: authz.ReasonDenyAnonymous}.Err()
	}
	assetID := strings.TrimSpace(req.Key)
	if assetID == "" {
		return Page{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "asset id is required",
			map[string]string{"field": "asset_id"})
	}
	page, err := c.store.ListTransactionsByAsset(ctx, assetID, pageSizes.Clamp(req.PageSize), req.PageToken)
	if err != nil {
		return Page{}, storageError(err)
	}
	return c.readable(ctx, caller, page), nil
}

func (c *Coordinator) readable(ctx context.Context, caller string, page storage.TransactionPage) Page {
	at := c.clock()
	out := Page{NextPageToken: page.NextPageToken, Transactions: make([]Transaction, 0, len(page.Transactions))}
	for _, state := range page.Transactions {
		if !c.authorizer.Authorize(ctx, caller, authz.ActionRead, state).Allowed {
			continue
		}
		out.Transactions = append(out.Transactions, c.view(state, at))
	}
	return out
}

// ListAuditEvents pages a transaction's audit journal.
func (c *Coordinator) ListAuditEvents(ctx context.Context, req AuditRequest) (result storage.AuditEventPage, err error) {
	ctx, finish := c.observe(ctx, "list_audit_events", req.TransactionID)
	defer finish(&err)

	state, err := c.load(ctx, req.TransactionID)
	if err != nil {
		return storage.AuditEventPage{}, err
	}
	if err := c.authorize(ctx, requestctx.PrincipalFromContext(ctx), authz.ActionReadAudit, state); err != nil {
		return storage.AuditEventPage{}, err
	}
	page, err := c.store.ListAuditEvents(ctx, storage.AuditQuery{
		TransactionID: state.ID,
		PageSize:      pageSizes.Clamp(req.PageSize),
		PageToken:     req.PageToken,
		OrderBy:       req.OrderBy,
		Filter:        req.Filter,
	})
	if err != nil {
		return storage.AuditEventPage{}, storageError(err)
	}
	return page, nil
}

// ChainReport summarizes a verified audit chain.
type ChainReport struct {
	TransactionID string
	Events        int
	HeadHash      string
	Status        transaction.Status
}

// VerifyAuditChain recomputes every event hash, chain link and signature
// and checks that replaying the journal yields the stored aggregate.
func (c *Coordinator) VerifyAuditChain(ctx context.Context, transactionID string) (result ChainReport, err error) {
	ctx, finish := c.observe(ctx, "verify_audit_chain", transactionID)
	defer finish(&err)

	state, err := c.load(ctx, transactionID)
	if err != nil {
		return ChainReport{}, err
	}
	if err := c.authorize(ctx, requestctx.PrincipalFromContext(ctx), authz.ActionReadAudit, state); err != nil {
		return ChainReport{}, err
	}
	events, err := c.store.AuditEvents(ctx, state.ID)
	if err != nil {
		return ChainReport{}, storageError(err)
	}

	var (
		prev     string
		replayed transaction.State
	)
	for i, record := range events {
		seq := int64(i + 1)
		if record.Seq != seq {
			return ChainReport{}, chainBroken(seq, "sequence gap")
		}
		if record.PrevHash != prev {
			return ChainReport{}, chainBroken(seq, "previous hash mismatch")
		}
		eventHash, err := integrity.EventHash(record.Event)
		if err != nil || eventHash != record.EventHash {
			return ChainReport{}, chainBroken(seq, "event hash mismatch")
		}
		chainHash, err := integrity.ChainHash(state.ID, seq, eventHash, prev)
		if err != nil || chainHash != record.ChainHash {
			return ChainReport{}, chainBroken(seq, "chain hash mismatch")
		}
		if c.keyring != nil {
			if err := c.keyring.VerifyChainHash(state.ID, chainHash, record.Signature, record.SignatureKeyID); err != nil {
				return ChainReport{}, chainBroken(seq, "signature mismatch")
			}
		}
		replayed = transaction.Fold(replayed, record.Event)
		prev = chainHash
	}
	if len(events) == 0 {
		return ChainReport{}, chainBroken(1, "journal is empty")
	}
	if replayed.Status != state.Status || replayed.SignedCount() != state.SignedCount() {
		return ChainReport{}, chainBroken(int64(len(events)), "replay does not match stored transaction")
	}
	return ChainReport{
		TransactionID: state.ID,
		Events:        len(events),
		HeadHash:      prev,
		Status:        state.Status,
	}, nil
}

func chainBroken(seq int64, reason string) error {
	return apperrors.WithMetadata(apperrors.CodeAuditChainBroken, "audit chain verification failed",
		map[string]string{"seq": strconv.FormatInt(seq, 10), "reason": reason})
}
