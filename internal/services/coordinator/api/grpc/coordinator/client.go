package coordinator

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/assetflow/internal/platform/grpc/jsoncodec"
)

// Client calls TransactionService over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// AsPrincipal attaches the principal header for servers without token
// verification.
func AsPrincipal(ctx context.Context, principal string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, PrincipalHeader, principal)
}

// WithBearer attaches a bearer token.
func WithBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationHeader, "Bearer "+token)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{jsoncodec.CallOption()}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, in *CreateTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, MethodCreateTransaction, in, opts)
}

func (c *Client) SignTransaction(ctx context.Context, in *SignTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, MethodSignTransaction, in, opts)
}

func (c *Client) ExecuteTransaction(ctx context.Context, in *ExecuteTransactionRequest, opts ...grpc.CallOption) (*ExecuteTransactionResponse, error) {
	return invoke[ExecuteTransactionResponse](ctx, c.cc, MethodExecuteTransaction, in, opts)
}

func (c *Client) CancelTransaction(ctx context.Context, in *CancelTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, MethodCancelTransaction, in, opts)
}

func (c *Client) RejectTransaction(ctx context.Context, in *RejectTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, MethodRejectTransaction, in, opts)
}

func (c *Client) ExpireTransaction(ctx context.Context, in *ExpireTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, MethodExpireTransaction, in, opts)
}

func (c *Client) GetTransaction(ctx context.Context, in *GetTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, MethodGetTransaction, in, opts)
}

func (c *Client) ListTransactionsByParty(ctx context.Context, in *ListTransactionsByPartyRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	return invoke[ListTransactionsResponse](ctx, c.cc, MethodListTransactionsByParty, in, opts)
}

func (c *Client) ListTransactionsByAsset(ctx context.Context, in *ListTransactionsByAssetRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	return invoke[ListTransactionsResponse](ctx, c.cc, MethodListTransactionsByAsset, in, opts)
}

func (c *Client) ListAuditEvents(ctx context.Context, in *ListAuditEventsRequest, opts ...grpc.CallOption) (*ListAuditEventsResponse, error) {
	return invoke[ListAuditEventsResponse](ctx, c.cc, MethodListAuditEvents, in, opts)
}

func (c *Client) VerifyAuditChain(ctx context.Context, in *VerifyAuditChainRequest, opts ...grpc.CallOption) (*VerifyAuditChainResponse, error) {
	return invoke[VerifyAuditChainResponse](ctx, c.cc, MethodVerifyAuditChain, in, opts)
}
