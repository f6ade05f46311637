package transaction

import (
	"testing"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
)

func TestPlanMutationTransferDefaultsToBuyer(t *testing.T) {
	state := State{Kind: KindAssetTransfer, Parties: []Party{{Principal: "alice", Role: "SELLER"}, {Principal: "bob", Role: "buyer"}}}
	mutation, err := PlanMutation(state, ExecutionData{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if mutation.Type != MutationTransfer || mutation.NewOwner != "bob" {
		t.Fatalf("mutation = %+v", mutation)
	}

	mutation, err = PlanMutation(state, ExecutionData{NewOwner: "alice"})
	if err != nil || mutation.NewOwner != "alice" {
		t.Fatalf("override = %+v, %v", mutation, err)
	}
}

func TestPlanMutationTransferRequiresPartyOwner(t *testing.T) {
	state := State{Kind: KindAssetTransfer, Parties: []Party{{Principal: "alice", Role: "SELLER"}, {Principal: "carol", Role: "WITNESS"}}}
	if _, err := PlanMutation(state, ExecutionData{}); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected missing buyer error, got %v", err)
	}
	if _, err := PlanMutation(state, ExecutionData{NewOwner: "mallory"}); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected non-party owner error, got %v", err)
	}
}

func TestPlanMutationSelfTransferDefaultsToSoleParty(t *testing.T) {
	state := State{Kind: KindAssetTransfer, Parties: []Party{{Principal: "alice", Role: "SELLER"}}}
	mutation, err := PlanMutation(state, ExecutionData{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if mutation.Type != MutationTransfer || mutation.NewOwner != "alice" {
		t.Fatalf("mutation = %+v, want transfer to alice", mutation)
	}
}

func TestPlanMutationStatusDefaults(t *testing.T) {
	tests := map[Kind]string{
		KindContractExecution:    "CONTRACTED",
		KindPayment:              "SETTLED",
		KindClaim:                "CLAIMED",
		KindDocumentVerification: "VERIFIED",
	}
	for kind, want := range tests {
		mutation, err := PlanMutation(State{Kind: kind}, ExecutionData{})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if mutation.Type != MutationUpdateStatus || mutation.Status != want {
			t.Fatalf("%s mutation = %+v, want status %s", kind, mutation, want)
		}
	}
	mutation, err := PlanMutation(State{Kind: KindClaim}, ExecutionData{AssetStatus: "DENIED"})
	if err != nil || mutation.Status != "DENIED" {
		t.Fatalf("override = %+v, %v", mutation, err)
	}
}
