package transaction

import (
	"strings"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
)

// MutationType selects the ledger call made for each asset.
type MutationType string

const (
	MutationTransfer     MutationType = "transfer"
	MutationUpdateStatus MutationType = "update_status"
)

// Mutation is the per-asset ledger change an execution applies.
type Mutation struct {
	Type     MutationType `json:"type"`
	NewOwner string       `json:"new_owner,omitempty"`
	Status   string       `json:"status,omitempty"`
}

// ExecutionData carries caller overrides for execution.
type ExecutionData struct {
	NewOwner    string `json:"new_owner,omitempty"`
	AssetStatus string `json:"asset_status,omitempty"`
}

// Outcome is the result of one asset step during execution.
type Outcome string

const (
	OutcomeApplied            Outcome = "applied"
	OutcomeFailed             Outcome = "failed"
	OutcomeSkipped            Outcome = "skipped"
	OutcomeCompensated        Outcome = "compensated"
	OutcomeCompensationFailed Outcome = "compensation_failed"
)

// AssetOutcome reports what happened to one asset.
type AssetOutcome struct {
	AssetID        string   `json:"asset_id"`
	Mutation       Mutation `json:"mutation"`
	Outcome        Outcome  `json:"outcome"`
	PreviousOwner  string   `json:"previous_owner,omitempty"`
	PreviousStatus string   `json:"previous_status,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// defaultOwner is the BUYER-role party, or the only party of a self-transfer.
func defaultOwner(state State) string {
	if buyer, ok := state.PartyWithRole("BUYER"); ok {
		return buyer.Principal
	}
	if len(state.Parties) == 1 {
		return state.Parties[0].Principal
	}
	return ""
}

// PlanMutation resolves the kind-appropriate mutation for state.
func PlanMutation(state State, data ExecutionData) (Mutation, error) {
	if state.Kind.TransfersOwnership() {
		owner := strings.TrimSpace(data.NewOwner)
		if owner == "" {
			owner = defaultOwner(state)
		}
		if owner == "" {
			return Mutation{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
				"new owner is required when no party has role BUYER",
				map[string]string{"field": "execution_data.new_owner"})
		}
		if !state.IsParty(owner) {
			return Mutation{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
				"new owner must be a party to the transaction",
				map[string]string{"field": "execution_data.new_owner"})
		}
		return Mutation{Type: MutationTransfer, NewOwner: owner}, nil
	}

	status := strings.TrimSpace(data.AssetStatus)
	if status == "" {
		status = state.Kind.DefaultAssetStatus()
	}
	if status == "" {
		return Mutation{}, apperrors.WithMetadata(apperrors.CodeInvalidKind,
			"kind has no execution mutation", map[string]string{"kind": string(state.Kind)})
	}
	return Mutation{Type: MutationUpdateStatus, Status: status}, nil
}
