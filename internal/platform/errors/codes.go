// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeNotAParty        Code = "NOT_A_PARTY"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeCreatorNotAParty Code = "CREATOR_NOT_A_PARTY"

	// Lifecycle errors
	CodeAlreadySigned       Code = "ALREADY_SIGNED"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeTransactionExpired  Code = "TRANSACTION_EXPIRED"
	CodeComplianceRejected  Code = "COMPLIANCE_REJECTED"
	CodeAssetMutationFailed Code = "ASSET_MUTATION_FAILED"

	// Validation errors
	CodeDuplicateParty  Code = "DUPLICATE_PARTY"
	CodeEmptyPartyList  Code = "EMPTY_PARTY_LIST"
	CodeInvalidKind     Code = "INVALID_KIND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Lookup errors
	CodeAssetNotFound Code = "ASSET_NOT_FOUND"
	CodeNotFound      Code = "NOT_FOUND"

	// Infrastructure errors
	CodeCollaboratorUnavailable Code = "COLLABORATOR_UNAVAILABLE"
	CodeVersionConflict         Code = "VERSION_CONFLICT"
	CodeAuditChainBroken        Code = "AUDIT_CHAIN_BROKEN"
)

// Codes lists every known code in declaration order.
func Codes() []Code {
	return []Code{
		CodeNotAParty,
		CodePermissionDenied,
		CodeUnauthenticated,
		CodeCreatorNotAParty,
		CodeAlreadySigned,
		CodeInvalidState,
		CodeTransactionExpired,
		CodeComplianceRejected,
		CodeAssetMutationFailed,
		CodeDuplicateParty,
		CodeEmptyPartyList,
		CodeInvalidKind,
		CodeInvalidArgument,
		CodeAssetNotFound,
		CodeNotFound,
		CodeCollaboratorUnavailable,
		CodeVersionConflict,
		CodeAuditChainBroken,
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDuplicateParty,
		CodeEmptyPartyList,
		CodeCreatorNotAParty,
		CodeInvalidKind,
		CodeInvalidArgument:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeAlreadySigned,
		CodeInvalidState,
		CodeTransactionExpired,
		CodeComplianceRejected,
		CodeAssetNotFound:
		return codes.FailedPrecondition

	case CodeNotAParty, CodePermissionDenied:
		return codes.PermissionDenied

	case CodeUnauthenticated:
		return codes.Unauthenticated

	case CodeNotFound:
		return codes.NotFound

	case CodeVersionConflict:
		return codes.Aborted

	case CodeAssetMutationFailed:
		return codes.Aborted

	case CodeCollaboratorUnavailable:
		return codes.Unavailable

	case CodeAuditChainBroken:
		return codes.DataLoss

	default:
		return codes.Internal
	}
}
