package coordinator

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/platform/requestctx"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/service"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
)

// Coordinator is the engine behind the gRPC surface.
type Coordinator interface {
	CreateTransaction(ctx context.Context, in service.CreateInput) (service.Transaction, error)
	SignTransaction(ctx context.Context, transactionID, evidence string) (service.Transaction, error)
	ExecuteTransaction(ctx context.Context, transactionID string, data transaction.ExecutionData) (service.ExecuteResult, error)
	CancelTransaction(ctx context.Context, transactionID, reason string) (service.Transaction, error)
	RejectTransaction(ctx context.Context, transactionID, reason string) (service.Transaction, error)
	ExpireTransaction(ctx context.Context, transactionID string) (service.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (service.Transaction, error)
	ListTransactionsByParty(ctx context.Context, req service.ListRequest) (service.Page, error)
	ListTransactionsByAsset(ctx context.Context, req service.ListRequest) (service.Page, error)
	ListAuditEvents(ctx context.Context, req service.AuditRequest) (storage.AuditEventPage, error)
	VerifyAuditChain(ctx context.Context, transactionID string) (service.ChainReport, error)
}

var _ Coordinator = (*service.Coordinator)(nil)

// Service implements TransactionServiceServer.
type Service struct {
	coordinator Coordinator
}

// NewService wraps a coordinator.
func NewService(coordinator Coordinator) *Service {
	return &Service{coordinator: coordinator}
}

var _ TransactionServiceServer = (*Service)(nil)

func (s *Service) ready(missing bool, name string) error {
	if s == nil || s.coordinator == nil {
		return status.Error(codes.Internal, "transaction coordinator is not configured")
	}
	if missing {
		return status.Errorf(codes.InvalidArgument, "%s request is required", name)
	}
	return nil
}

func grpcError(ctx context.Context, err error) error {
	return apperrors.HandleError(err, requestctx.LocaleFromContext(ctx))
}

func single(ctx context.Context, view service.Transaction, err error) (*TransactionResponse, error) {
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &TransactionResponse{Transaction: transactionToWire(view)}, nil
}

// CreateTransaction proposes a transaction signed by the caller.
func (s *Service) CreateTransaction(ctx context.Context, in *CreateTransactionRequest) (*TransactionResponse, error) {
	if err := s.ready(in == nil, "create transaction"); err != nil {
		return nil, err
	}
	view, err := s.coordinator.CreateTransaction(ctx, createInputFromWire(in))
	return single(ctx, view, err)
}

// SignTransaction records the caller's signature.
func (s *Service) SignTransaction(ctx context.Context, in *SignTransactionRequest) (*TransactionResponse, error) {
	if err := s.ready(in == nil, "sign transaction"); err != nil {
		return nil, err
	}
	view, err := s.coordinator.SignTransaction(ctx, in.TransactionID, in.SignatureEvidence)
	return single(ctx, view, err)
}

// ExecuteTransaction mutates every asset or none.
func (s *Service) ExecuteTransaction(ctx context.Context, in *ExecuteTransactionRequest) (*ExecuteTransactionResponse, error) {
	if err := s.ready(in == nil, "execute transaction"); err != nil {
		return nil, err
	}
	result, err := s.coordinator.ExecuteTransaction(ctx, in.TransactionID, in.ExecutionData)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &ExecuteTransactionResponse{
		Transaction: transactionToWire(result.Transaction),
		Outcomes:    result.Outcomes,
	}, nil
}

// CancelTransaction withdraws a transaction.
func (s *Service) CancelTransaction(ctx context.Context, in *CancelTransactionRequest) (*TransactionResponse, error) {
	if err := s.ready(in == nil, "cancel transaction"); err != nil {
		return nil, err
	}
	view, err := s.coordinator.CancelTransaction(ctx, in.TransactionID, in.Reason)
	return single(ctx, view, err)
}

// RejectTransaction declines on behalf of an unsigned party.
func (s *Service) RejectTransaction(ctx context.Context, in *RejectTransactionRequest) (*TransactionResponse, error) {
	if err := s.ready(in == nil, "reject transaction"); err != nil {
		return nil, err
	}
	view, err := s.coordinator.RejectTransaction(ctx, in.TransactionID, in.Reason)
	return single(ctx, view, err)
}

// ExpireTransaction persists observed expiry.
func (s *Service) ExpireTransaction(ctx context.Context, in *ExpireTransactionRequest) (*TransactionResponse, error) {
	if err := s.ready(in == nil, "expire transaction"); err != nil {
		return nil, err
	}
	view, err := s.coordinator.ExpireTransaction(ctx, in.TransactionID)
	return single(ctx, view, err)
}

// GetTransaction reads one transaction.
func (s *Service) GetTransaction(ctx context.Context, in *GetTransactionRequest) (*TransactionResponse, error) {
	if err := s.ready(in == nil, "get transaction"); err != nil {
		return nil, err
	}
	view, err := s.coordinator.GetTransaction(ctx, in.TransactionID)
	return single(ctx, view, err)
}

// ListTransactionsByParty pages a principal's transactions.
func (s *Service) ListTransactionsByParty(ctx context.Context, in *ListTransactionsByPartyRequest) (*ListTransactionsResponse, error) {
	if err := s.ready(in == nil, "list transactions by party"); err != nil {
		return nil, err
	}
	page, err := s.coordinator.ListTransactionsByParty(ctx, service.ListRequest{
		Key:       in.Principal,
		PageSize:  in.PageSize,
		PageToken: in.PageToken,
	})
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &ListTransactionsResponse{Transactions: transactionsToWire(page.Transactions), NextPageToken: page.NextPageToken}, nil
}

// ListTransactionsByAsset pages the transactions naming an asset.
func (s *Service) ListTransactionsByAsset(ctx context.Context, in *ListTransactionsByAssetRequest) (*ListTransactionsResponse, error) {
	if err := s.ready(in == nil, "list transactions by asset"); err != nil {
		return nil, err
	}
	page, err := s.coordinator.ListTransactionsByAsset(ctx, service.ListRequest{
		Key:       in.AssetID,
		PageSize:  in.PageSize,
		PageToken: in.PageToken,
	})
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &ListTransactionsResponse{Transactions: transactionsToWire(page.Transactions), NextPageToken: page.NextPageToken}, nil
}

// ListAuditEvents pages a transaction's audit journal.
func (s *Service) ListAuditEvents(ctx context.Context, in *ListAuditEventsRequest) (*ListAuditEventsResponse, error) {
	if err := s.ready(in == nil, "list audit events"); err != nil {
		return nil, err
	}
	page, err := s.coordinator.ListAuditEvents(ctx, service.AuditRequest{
		TransactionID: in.TransactionID,
		PageSize:      in.PageSize,
		PageToken:     in.PageToken,
		OrderBy:       in.OrderBy,
		Filter:        in.Filter,
	})
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	events := make([]AuditEvent, 0, len(page.Events))
	for _, evt := range page.Events {
		events = append(events, auditEventToWire(evt))
	}
	return &ListAuditEventsResponse{Events: events, NextPageToken: page.NextPageToken}, nil
}

// VerifyAuditChain checks the journal's hashes and signatures.
func (s *Service) VerifyAuditChain(ctx context.Context, in *VerifyAuditChainRequest) (*VerifyAuditChainResponse, error) {
	if err := s.ready(in == nil, "verify audit chain"); err != nil {
		return nil, err
	}
	report, err := s.coordinator.VerifyAuditChain(ctx, in.TransactionID)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &VerifyAuditChainResponse{
		TransactionID: report.TransactionID,
		Events:        report.Events,
		HeadHash:      report.HeadHash,
		Status:        string(report.Status),
	}, nil
}
