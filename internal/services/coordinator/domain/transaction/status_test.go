package transaction

import (
	"testing"
	"time"
)

func TestCanTransitionNeverGoesBackward(t *testing.T) {
	backward := [][2]Status{
		{StatusApproved, StatusPending},
		{StatusPending, StatusCreated},
		{StatusExecuted, StatusApproved},
		{StatusCancelled, StatusCreated},
		{StatusExpired, StatusPending},
		{StatusRejected, StatusPending},
	}
	for _, edge := range backward {
		if CanTransition(edge[0], edge[1]) {
			t.Fatalf("unexpected edge %s -> %s", edge[0], edge[1])
		}
	}
	for _, final := range []Status{StatusExecuted, StatusCancelled} {
		for _, to := range Statuses() {
			if CanTransition(final, to) {
				t.Fatalf("final status %s has edge to %s", final, to)
			}
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status      Status
		terminal    bool
		expirable   bool
		cancellable bool
	}{
		{StatusCreated, false, true, true},
		{StatusPending, false, true, true},
		{StatusApproved, false, true, true},
		{StatusRejected, true, false, true},
		{StatusExpired, true, false, true},
		{StatusExecuted, true, false, false},
		{StatusCancelled, true, false, false},
	}
	for _, tc := range tests {
		if tc.status.Terminal() != tc.terminal || tc.status.Expirable() != tc.expirable || tc.status.Cancellable() != tc.cancellable {
			t.Fatalf("%s predicates = %v/%v/%v", tc.status, tc.status.Terminal(), tc.status.Expirable(), tc.status.Cancellable())
		}
	}
}

func TestParseStatusAndKind(t *testing.T) {
	if status, ok := ParseStatus(" transaction_status_pending "); !ok || status != StatusPending {
		t.Fatalf("ParseStatus = %s, %v", status, ok)
	}
	if _, ok := ParseStatus("DONE"); ok {
		t.Fatal("expected unknown status")
	}
	if kind, ok := ParseKind("document-verification"); !ok || kind != KindDocumentVerification {
		t.Fatalf("ParseKind = %s, %v", kind, ok)
	}
	if _, ok := ParseKind(""); ok {
		t.Fatal("expected empty kind to be rejected")
	}
}

func TestEffectiveStatus(t *testing.T) {
	expires := baseTime.Add(time.Hour)
	state := State{Created: true, Status: StatusPending, ExpiresAt: &expires}
	if got := state.EffectiveStatus(expires); got != StatusPending {
		t.Fatalf("at deadline = %s, want PENDING", got)
	}
	if got := state.EffectiveStatus(expires.Add(time.Millisecond)); got != StatusExpired {
		t.Fatalf("after deadline = %s, want EXPIRED", got)
	}
	state.Status = StatusExecuted
	if got := state.EffectiveStatus(expires.Add(time.Hour)); got != StatusExecuted {
		t.Fatalf("executed = %s, want EXECUTED", got)
	}
	state.ExpiresAt = nil
	state.Status = StatusApproved
	if got := state.EffectiveStatus(baseTime.Add(1000 * time.Hour)); got != StatusApproved {
		t.Fatalf("never expiring = %s", got)
	}
}
