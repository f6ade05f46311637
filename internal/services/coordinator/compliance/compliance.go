// Package compliance defines the ComplianceGate collaborator: a verdict per
// jurisdiction and operation, backed either by a local policy or a remote
// service.
package compliance

import (
	"context"
	"errors"
)

// Operation names the coordinator step being evaluated.
type Operation string

const (
	OperationCreate  Operation = "TRANSACTION_CREATE"
	OperationExecute Operation = "TRANSACTION_EXECUTE"
)

// ErrUnavailable reports a transient gate failure worth retrying.
var ErrUnavailable = errors.New("compliance gate unavailable")

// Request is one compliance evaluation. Data is opaque to the gate's caller.
type Request struct {
	Jurisdiction string            `json:"jurisdiction"`
	Operation    Operation         `json:"operation"`
	Data         map[string]string `json:"data,omitempty"`
}

// Verdict is the gate's answer.
type Verdict struct {
	Compliant       bool     `json:"compliant"`
	VerificationIDs []string `json:"verification_ids,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// Gate evaluates compliance for an operation.
type Gate interface {
	Evaluate(ctx context.Context, req Request) (Verdict, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, req Request) (Verdict, error)

// Evaluate calls f.
func (f GateFunc) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	return f(ctx, req)
}

// Transient reports whether err is worth retrying later.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
