// Package coordinator exposes the transaction coordinator as the gRPC service
// assetflow.coordinator.v1.TransactionService.
//
// Messages are plain Go structs carried by the JSON codec registered in
// platform/grpc/jsoncodec, so clients must select the "json" content-subtype
// (the Client in this package does). Domain errors leave the service as gRPC
// statuses with ErrorInfo, LocalizedMessage and, when retryable, RetryInfo
// details.
package coordinator
