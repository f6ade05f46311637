package transaction

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func createCmd(actor string, parties ...string) Create {
	inputs := make([]PartyInput, 0, len(parties))
	for i, principal := range parties {
		role := "SELLER"
		if i > 0 {
			role = "BUYER"
		}
		inputs = append(inputs, PartyInput{Principal: principal, Role: role})
	}
	return Create{
		TransactionID: "tx-1",
		ActorID:       actor,
		Kind:          KindAssetTransfer,
		Jurisdiction:  "US-NY",
		AssetIDs:      []string{"asset-1"},
		Parties:       inputs,
	}
}

func mustDecide(t *testing.T, state State, cmd Command, at time.Time) State {
	t.Helper()
	decision := Decide(state, cmd, fixedNow(at))
	if decision.Rejected() {
		t.Fatalf("%s rejected: %v", CommandName(cmd), decision.Err())
	}
	for _, evt := range decision.Events {
		if evt.Transition() && !CanTransition(evt.From, evt.To) {
			t.Fatalf("illegal transition %s -> %s", evt.From, evt.To)
		}
	}
	return FoldAll(state, decision.Events)
}

func expectRejection(t *testing.T, decision Decision, code apperrors.Code) {
	t.Helper()
	if !decision.Rejected() {
		t.Fatalf("expected rejection %s, got events %v", code, decision.Events)
	}
	if got := decision.Rejections[0].Code; got != code {
		t.Fatalf("rejection = %s, want %s", got, code)
	}
	if len(decision.Events) != 0 {
		t.Fatal("rejected decision must not carry events")
	}
}

func TestCreateSignsCreatorAndStaysCreated(t *testing.T) {
	decision := Decide(State{}, createCmd("alice", "alice", "bob"), fixedNow(baseTime))
	if decision.Rejected() {
		t.Fatalf("create rejected: %v", decision.Err())
	}
	if len(decision.Events) != 2 {
		t.Fatalf("events = %d, want created + signed", len(decision.Events))
	}
	if decision.Events[0].Type != EventCreated || decision.Events[1].Type != EventSigned {
		t.Fatalf("event types = %s, %s", decision.Events[0].Type, decision.Events[1].Type)
	}
	state := FoldAll(State{}, decision.Events)
	if state.Status != StatusCreated {
		t.Fatalf("status = %s, want %s", state.Status, StatusCreated)
	}
	alice, _ := state.Party("alice")
	if !alice.HasSigned || !alice.SignedAt.Equal(baseTime) {
		t.Fatalf("creator party = %+v", alice)
	}
	bob, _ := state.Party("bob")
	if bob.HasSigned {
		t.Fatal("expected bob unsigned")
	}
	if state.CreatedBy != "alice" || state.ID != "tx-1" {
		t.Fatalf("state = %+v", state)
	}
}

func TestCreateSinglePartyAutoApproves(t *testing.T) {
	decision := Decide(State{}, createCmd("alice", "alice"), fixedNow(baseTime))
	if decision.Rejected() {
		t.Fatalf("create rejected: %v", decision.Err())
	}
	last := decision.Events[len(decision.Events)-1]
	if last.Type != EventApproved || last.From != StatusCreated || last.To != StatusApproved {
		t.Fatalf("last event = %+v", last)
	}
	state := FoldAll(State{}, decision.Events)
	if state.Status != StatusApproved {
		t.Fatalf("status = %s, want %s", state.Status, StatusApproved)
	}

	again := Decide(state, Sign{ActorID: "alice"}, fixedNow(baseTime.Add(time.Minute)))
	expectRejection(t, again, apperrors.CodeAlreadySigned)
}

func TestCreateValidation(t *testing.T) {
	past := baseTime.Add(-time.Hour)
	tests := []struct {
		name string
		cmd  Create
		want apperrors.Code
	}{
		{name: "empty parties", cmd: Create{TransactionID: "tx", ActorID: "a", Kind: KindPayment, Jurisdiction: "EU"}, want: apperrors.CodeEmptyPartyList},
		{name: "duplicate party", cmd: func() Create {
			c := createCmd("alice", "alice", "bob")
			c.Parties = append(c.Parties, PartyInput{Principal: " bob "})
			return c
		}(), want: apperrors.CodeDuplicateParty},
		{name: "creator missing", cmd: createCmd("mallory", "alice", "bob"), want: apperrors.CodeCreatorNotAParty},
		{name: "bad kind", cmd: func() Create { c := createCmd("alice", "alice"); c.Kind = "LOAN"; return c }(), want: apperrors.CodeInvalidKind},
		{name: "missing jurisdiction", cmd: func() Create { c := createCmd("alice", "alice"); c.Jurisdiction = " "; return c }(), want: apperrors.CodeInvalidArgument},
		{name: "blank principal", cmd: func() Create { c := createCmd("alice", "alice"); c.Parties = append(c.Parties, PartyInput{}); return c }(), want: apperrors.CodeInvalidArgument},
		{name: "duplicate asset", cmd: func() Create { c := createCmd("alice", "alice"); c.AssetIDs = []string{"a", "a"}; return c }(), want: apperrors.CodeInvalidArgument},
		{name: "past expiry", cmd: func() Create { c := createCmd("alice", "alice"); c.ExpiresAt = &past; return c }(), want: apperrors.CodeInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectRejection(t, Decide(State{}, tc.cmd, fixedNow(baseTime)), tc.want)
		})
	}
}

func TestCreateAllowsEmptyAssetList(t *testing.T) {
	cmd := createCmd("alice", "alice", "bob")
	cmd.AssetIDs = nil
	state := mustDecide(t, State{}, cmd, baseTime)
	if len(state.AssetIDs) != 0 {
		t.Fatalf("asset ids = %v", state.AssetIDs)
	}
}

func TestNSignaturesApprove(t *testing.T) {
	parties := []string{"alice", "bob", "carol", "dave"}
	state := mustDecide(t, State{}, createCmd("alice", parties...), baseTime)

	for i, principal := range parties[1:] {
		state = mustDecide(t, state, Sign{ActorID: principal}, baseTime.Add(time.Duration(i+1)*time.Minute))
		signed := i + 2
		if signed < len(parties) && state.Status != StatusPending {
			t.Fatalf("after %d of %d signatures status = %s, want PENDING", signed, len(parties), state.Status)
		}
	}
	if state.Status != StatusApproved {
		t.Fatalf("status = %s, want APPROVED", state.Status)
	}
}

func TestTwoPartySignWalksPendingThenApproved(t *testing.T) {
	state := mustDecide(t, State{}, createCmd("alice", "alice", "bob"), baseTime)
	decision := Decide(state, Sign{ActorID: "bob", Evidence: "sig"}, fixedNow(baseTime.Add(time.Minute)))
	if decision.Rejected() {
		t.Fatalf("sign rejected: %v", decision.Err())
	}
	var types []EventType
	for _, evt := range decision.Events {
		types = append(types, evt.Type)
	}
	want := []EventType{EventSigned, EventPending, EventApproved}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestSignTwiceFailsAndKeepsSignedAt(t *testing.T) {
	state := mustDecide(t, State{}, createCmd("alice", "alice", "bob", "carol"), baseTime)
	state = mustDecide(t, state, Sign{ActorID: "bob"}, baseTime.Add(time.Minute))
	bob, _ := state.Party("bob")

	decision := Decide(state, Sign{ActorID: "bob"}, fixedNow(baseTime.Add(2*time.Minute)))
	expectRejection(t, decision, apperrors.CodeAlreadySigned)

	after := FoldAll(state, decision.Events)
	again, _ := after.Party("bob")
	if !again.SignedAt.Equal(bob.SignedAt) {
		t.Fatalf("signedAt changed from %v to %v", bob.SignedAt, again.SignedAt)
	}
}

func TestSignRejections(t *testing.T) {
	state := mustDecide(t, State{}, createCmd("alice", "alice", "bob", "carol"), baseTime)

	expectRejection(t, Decide(state, Sign{ActorID: "mallory"}, fixedNow(baseTime)), apperrors.CodeNotAParty)
	expectRejection(t, Decide(State{}, Sign{ActorID: "bob"}, fixedNow(baseTime)), apperrors.CodeNotFound)

	cancelled := mustDecide(t, state, Cancel{ActorID: "alice"}, baseTime)
	expectRejection(t, Decide(cancelled, Sign{ActorID: "bob"}, fixedNow(baseTime)), apperrors.CodeInvalidState)
}

func TestSignAfterExpiryFailsWithoutStateChange(t *testing.T) {
	expires := baseTime.Add(time.Hour)
	cmd := createCmd("alice", "alice", "bob")
	cmd.ExpiresAt = &expires
	state := mustDecide(t, State{}, cmd, baseTime)

	decision := Decide(state, Sign{ActorID: "bob"}, fixedNow(baseTime.Add(2*time.Hour)))
	expectRejection(t, decision, apperrors.CodeTransactionExpired)
	if state.Status != StatusCreated {
		t.Fatalf("stored status = %s, want CREATED", state.Status)
	}
	if got := state.EffectiveStatus(baseTime.Add(2 * time.Hour)); got != StatusExpired {
		t.Fatalf("effective status = %s, want EXPIRED", got)
	}
}

func TestPendingSignAfterExpiryStaysPending(t *testing.T) {
	expires := baseTime.Add(time.Hour)
	cmd := createCmd("alice", "alice", "bob", "carol")
	cmd.ExpiresAt = &expires
	state := mustDecide(t, State{}, cmd, baseTime)
	state = mustDecide(t, state, Sign{ActorID: "bob"}, baseTime.Add(time.Minute))
	if state.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", state.Status)
	}
	expectRejection(t, Decide(state, Sign{ActorID: "carol"}, fixedNow(baseTime.Add(2*time.Hour))), apperrors.CodeTransactionExpired)
	if state.Status != StatusPending {
		t.Fatalf("stored status = %s, want PENDING", state.Status)
	}
}

func approvedState(t *testing.T) State {
	t.Helper()
	state := mustDecide(t, State{}, createCmd("alice", "alice", "bob"), baseTime)
	return mustDecide(t, state, Sign{ActorID: "bob"}, baseTime.Add(time.Minute))
}

func TestExecuteGuards(t *testing.T) {
	approved := approvedState(t)
	if d := Decide(approved, Execute{ActorID: "bob"}, fixedNow(baseTime)); d.Rejected() || len(d.Events) != 0 {
		t.Fatalf("expected permission without events, got %+v", d)
	}
	expectRejection(t, Decide(approved, Execute{ActorID: "mallory"}, fixedNow(baseTime)), apperrors.CodeNotAParty)

	pending := mustDecide(t, State{}, createCmd("alice", "alice", "bob", "carol"), baseTime)
	expectRejection(t, Decide(pending, Execute{ActorID: "alice"}, fixedNow(baseTime)), apperrors.CodeInvalidState)

	expires := baseTime.Add(time.Hour)
	approved.ExpiresAt = &expires
	expectRejection(t, Decide(approved, Execute{ActorID: "alice"}, fixedNow(baseTime.Add(2*time.Hour))), apperrors.CodeTransactionExpired)
}

func TestCompleteAndFailExecution(t *testing.T) {
	approved := approvedState(t)
	outcomes := []AssetOutcome{{AssetID: "asset-1", Outcome: OutcomeApplied}}

	failed := Decide(approved, FailExecution{ActorID: "alice", FailedAssetID: "asset-1", Cause: "boom", Outcomes: outcomes}, fixedNow(baseTime))
	if failed.Rejected() || len(failed.Events) != 1 || failed.Events[0].Transition() {
		t.Fatalf("fail execution decision = %+v", failed)
	}
	afterFailure := FoldAll(approved, failed.Events)
	if afterFailure.Status != StatusApproved || !afterFailure.UpdatedAt.Equal(approved.UpdatedAt) {
		t.Fatalf("failed execution changed aggregate: %+v", afterFailure)
	}

	executed := mustDecide(t, approved, CompleteExecution{ActorID: "alice", Outcomes: outcomes, ComplianceRefs: []string{"v-1"}}, baseTime.Add(time.Hour))
	if executed.Status != StatusExecuted {
		t.Fatalf("status = %s, want EXECUTED", executed.Status)
	}
	if len(executed.ComplianceRefs) != 1 || executed.ComplianceRefs[0] != "v-1" {
		t.Fatalf("compliance refs = %v", executed.ComplianceRefs)
	}
}

func TestCancelFromEachStatus(t *testing.T) {
	created := mustDecide(t, State{}, createCmd("alice", "alice", "bob", "carol"), baseTime)
	pending := mustDecide(t, created, Sign{ActorID: "bob"}, baseTime)
	approved := approvedState(t)
	executed := mustDecide(t, approved, CompleteExecution{ActorID: "alice"}, baseTime)
	rejected := mustDecide(t, created, Reject{ActorID: "bob", Reason: "price"}, baseTime)
	expiredStored := created.Clone()
	expiredStored.Status = StatusExpired

	for name, state := range map[string]State{"created": created, "pending": pending, "approved": approved, "rejected": rejected, "expired": expiredStored} {
		t.Run(name, func(t *testing.T) {
			next := mustDecide(t, state, Cancel{ActorID: "alice", Reason: "changed mind"}, baseTime)
			if next.Status != StatusCancelled {
				t.Fatalf("status = %s, want CANCELLED", next.Status)
			}
		})
	}

	expectRejection(t, Decide(executed, Cancel{ActorID: "alice"}, fixedNow(baseTime)), apperrors.CodeInvalidState)
	cancelled := mustDecide(t, created, Cancel{ActorID: "alice"}, baseTime)
	expectRejection(t, Decide(cancelled, Cancel{ActorID: "alice"}, fixedNow(baseTime)), apperrors.CodeInvalidState)
	expectRejection(t, Decide(created, Cancel{ActorID: "mallory"}, fixedNow(baseTime)), apperrors.CodeNotAParty)
}

func TestCancelLazilyExpiredRecordsObservedStatus(t *testing.T) {
	expires := baseTime.Add(time.Hour)
	cmd := createCmd("alice", "alice", "bob")
	cmd.ExpiresAt = &expires
	state := mustDecide(t, State{}, cmd, baseTime)

	decision := Decide(state, Cancel{ActorID: "alice"}, fixedNow(baseTime.Add(2*time.Hour)))
	if decision.Rejected() {
		t.Fatalf("cancel rejected: %v", decision.Err())
	}
	evt := decision.Events[0]
	if evt.From != StatusCreated || evt.To != StatusCancelled {
		t.Fatalf("transition = %s -> %s", evt.From, evt.To)
	}
	if string(evt.PayloadJSON) != `{"observed_status":"EXPIRED"}` {
		t.Fatalf("payload = %s", evt.PayloadJSON)
	}
}

func TestRejectRules(t *testing.T) {
	created := mustDecide(t, State{}, createCmd("alice", "alice", "bob"), baseTime)
	expectRejection(t, Decide(created, Reject{ActorID: "alice"}, fixedNow(baseTime)), apperrors.CodeAlreadySigned)
	rejected := mustDecide(t, created, Reject{ActorID: "bob", Reason: "terms"}, baseTime)
	if rejected.Status != StatusRejected {
		t.Fatalf("status = %s, want REJECTED", rejected.Status)
	}
	expectRejection(t, Decide(rejected, Sign{ActorID: "bob"}, fixedNow(baseTime)), apperrors.CodeInvalidState)
}

func TestExpireRequiresElapsedDeadline(t *testing.T) {
	expires := baseTime.Add(time.Hour)
	cmd := createCmd("alice", "alice", "bob")
	cmd.ExpiresAt = &expires
	state := mustDecide(t, State{}, cmd, baseTime)

	expectRejection(t, Decide(state, Expire{ActorID: "alice"}, fixedNow(baseTime)), apperrors.CodeInvalidState)
	expired := mustDecide(t, state, Expire{ActorID: "alice"}, baseTime.Add(2*time.Hour))
	if expired.Status != StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", expired.Status)
	}
	expectRejection(t, Decide(expired, Expire{ActorID: "alice"}, fixedNow(baseTime.Add(3*time.Hour))), apperrors.CodeInvalidState)
	expectRejection(t, Decide(expired, Sign{ActorID: "bob"}, fixedNow(baseTime.Add(3*time.Hour))), apperrors.CodeTransactionExpired)
}

func TestComplianceRejectionIsAuditOnly(t *testing.T) {
	approved := approvedState(t)
	decision := Decide(approved, RecordComplianceRejection{ActorID: "alice", Operation: "TRANSACTION_EXECUTE", VerificationIDs: []string{"v-9"}}, fixedNow(baseTime.Add(time.Hour)))
	if decision.Rejected() || len(decision.Events) != 1 {
		t.Fatalf("decision = %+v", decision)
	}
	if decision.Events[0].Type != EventComplianceRejected || decision.Events[0].Transition() {
		t.Fatalf("event = %+v", decision.Events[0])
	}
}

func TestDecisionErrCarriesMetadata(t *testing.T) {
	state := mustDecide(t, State{}, createCmd("alice", "alice", "bob"), baseTime)
	err := Decide(state, Sign{ActorID: "mallory"}, fixedNow(baseTime)).Err()
	if !apperrors.IsCode(err, apperrors.CodeNotAParty) {
		t.Fatalf("err = %v", err)
	}
	if apperrors.GetMetadata(err)["principal"] != "mallory" {
		t.Fatalf("metadata = %v", apperrors.GetMetadata(err))
	}
	if (Decision{}).Err() != nil {
		t.Fatal("expected nil error for accepted decision")
	}
}
