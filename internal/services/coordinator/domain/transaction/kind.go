package transaction

import "strings"

// Kind is the transaction category.
type Kind string

const (
	KindUnspecified          Kind = ""
	KindAssetTransfer        Kind = "ASSET_TRANSFER"
	KindContractExecution    Kind = "CONTRACT_EXECUTION"
	KindPayment              Kind = "PAYMENT"
	KindClaim                Kind = "CLAIM"
	KindDocumentVerification Kind = "DOCUMENT_VERIFICATION"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindAssetTransfer, KindContractExecution, KindPayment, KindClaim, KindDocumentVerification}
}

// ParseKind canonicalizes a kind label. Accepts upper, lower and
// TRANSACTION_KIND_ prefixed forms.
func ParseKind(value string) (Kind, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.TrimPrefix(normalized, "TRANSACTION_KIND_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, kind := range Kinds() {
		if string(kind) == normalized {
			return kind, true
		}
	}
	return KindUnspecified, false
}

// DefaultAssetStatus is the status written to each asset when a non-transfer
// kind executes.
func (k Kind) DefaultAssetStatus() string {
	switch k {
	case KindContractExecution:
		return "CONTRACTED"
	case KindPayment:
		return "SETTLED"
	case KindClaim:
		return "CLAIMED"
	case KindDocumentVerification:
		return "VERIFIED"
	default:
		return ""
	}
}

// TransfersOwnership reports whether execution moves asset ownership.
func (k Kind) TransfersOwnership() bool {
	return k == KindAssetTransfer
}
