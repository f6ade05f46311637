package coordinator

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "assetflow.coordinator.v1.TransactionService"

// RPC method names.
const (
	MethodCreateTransaction       = "CreateTransaction"
	MethodSignTransaction         = "SignTransaction"
	MethodExecuteTransaction      = "ExecuteTransaction"
	MethodCancelTransaction       = "CancelTransaction"
	MethodRejectTransaction       = "RejectTransaction"
	MethodExpireTransaction       = "ExpireTransaction"
	MethodGetTransaction          = "GetTransaction"
	MethodListTransactionsByParty = "ListTransactionsByParty"
	MethodListTransactionsByAsset = "ListTransactionsByAsset"
	MethodListAuditEvents         = "ListAuditEvents"
	MethodVerifyAuditChain        = "VerifyAuditChain"
)

// FullMethod returns the /service/method path of an RPC.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// TransactionServiceServer is the server API of TransactionService.
type TransactionServiceServer interface {
	CreateTransaction(context.Context, *CreateTransactionRequest) (*TransactionResponse, error)
	SignTransaction(context.Context, *SignTransactionRequest) (*TransactionResponse, error)
	ExecuteTransaction(context.Context, *ExecuteTransactionRequest) (*ExecuteTransactionResponse, error)
	CancelTransaction(context.Context, *CancelTransactionRequest) (*TransactionResponse, error)
	RejectTransaction(context.Context, *RejectTransactionRequest) (*TransactionResponse, error)
	ExpireTransaction(context.Context, *ExpireTransactionRequest) (*TransactionResponse, error)
	GetTransaction(context.Context, *GetTransactionRequest) (*TransactionResponse, error)
	ListTransactionsByParty(context.Context, *ListTransactionsByPartyRequest) (*ListTransactionsResponse, error)
	ListTransactionsByAsset(context.Context, *ListTransactionsByAssetRequest) (*ListTransactionsResponse, error)
	ListAuditEvents(context.Context, *ListAuditEventsRequest) (*ListAuditEventsResponse, error)
	VerifyAuditChain(context.Context, *VerifyAuditChainRequest) (*VerifyAuditChainResponse, error)
}

// RegisterTransactionServiceServer registers srv on s.
func RegisterTransactionServiceServer(s grpc.ServiceRegistrar, srv TransactionServiceServer) {
	s.RegisterService(&TransactionServiceDesc, srv)
}

// TransactionServiceDesc describes TransactionService for grpc.Server.
var TransactionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransactionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateTransaction, TransactionServiceServer.CreateTransaction),
		unary(MethodSignTransaction, TransactionServiceServer.SignTransaction),
		unary(MethodExecuteTransaction, TransactionServiceServer.ExecuteTransaction),
		unary(MethodCancelTransaction, TransactionServiceServer.CancelTransaction),
		unary(MethodRejectTransaction, TransactionServiceServer.RejectTransaction),
		unary(MethodExpireTransaction, TransactionServiceServer.ExpireTransaction),
		unary(MethodGetTransaction, TransactionServiceServer.GetTransaction),
		unary(MethodListTransactionsByParty, TransactionServiceServer.ListTransactionsByParty),
		unary(MethodListTransactionsByAsset, TransactionServiceServer.ListTransactionsByAsset),
		unary(MethodListAuditEvents, TransactionServiceServer.ListAuditEvents),
		unary(MethodVerifyAuditChain, TransactionServiceServer.VerifyAuditChain),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "assetflow/coordinator/v1/transaction_service",
}

// unary adapts a typed server method to a grpc.MethodDesc.
func unary[Req, Resp any](method string, call func(TransactionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(TransactionServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			})
		},
	}
}
