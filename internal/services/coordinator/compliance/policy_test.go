package compliance

import (
	"context"
	"errors"
	"testing"
)

func TestPolicyAllowsByDefault(t *testing.T) {
	p := NewPolicy()
	verdict, err := p.Evaluate(context.Background(), Request{Jurisdiction: "US-NY", Operation: OperationCreate})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Compliant || len(verdict.VerificationIDs) != 1 {
		t.Fatalf("verdict = %+v", verdict)
	}
}

func TestPolicyBlocksJurisdiction(t *testing.T) {
	p := NewPolicy(" kp ")
	verdict, err := p.Evaluate(context.Background(), Request{Jurisdiction: "KP", Operation: OperationExecute})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Compliant || verdict.Reason == "" || len(verdict.VerificationIDs) != 1 {
		t.Fatalf("verdict = %+v", verdict)
	}

	p.AllowJurisdiction("KP")
	verdict, err = p.Evaluate(context.Background(), Request{Jurisdiction: "KP", Operation: OperationExecute})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Compliant {
		t.Fatal("expected jurisdiction to be allowed after lifting block")
	}
}

func TestPolicyBlocksCaller(t *testing.T) {
	p := NewPolicy()
	p.BlockPrincipal("mallory", "sanctioned")
	verdict, err := p.Evaluate(context.Background(), Request{
		Jurisdiction: "US-NY",
		Operation:    OperationCreate,
		Data:         map[string]string{"caller": "mallory"},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Compliant || verdict.Reason != "sanctioned" {
		t.Fatalf("verdict = %+v", verdict)
	}
}

func TestPolicyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPolicy().Evaluate(ctx, Request{Jurisdiction: "US"})
	if !errors.Is(err, context.Canceled) || !Transient(err) {
		t.Fatalf("evaluate = %v, want transient canceled", err)
	}
}

func TestGateFunc(t *testing.T) {
	gate := GateFunc(func(context.Context, Request) (Verdict, error) {
		return Verdict{}, ErrUnavailable
	})
	if _, err := gate.Evaluate(context.Background(), Request{}); !Transient(err) {
		t.Fatalf("gate func = %v, want transient", err)
	}
}
