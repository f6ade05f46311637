package authz

import (
	"context"
	"strings"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
)

// Action is an operation gated by the policy.
type Action string

const (
	ActionCreate    Action = "create"
	ActionSign      Action = "sign"
	ActionExecute   Action = "execute"
	ActionCancel    Action = "cancel"
	ActionReject    Action = "reject"
	ActionExpire    Action = "expire"
	ActionRead      Action = "read"
	ActionReadAudit Action = "read_audit"
)

// Role is the principal's relationship to a transaction.
type Role string

const (
	RoleNone    Role = "none"
	RoleParty   Role = "party"
	RoleAuditor Role = "auditor"
)

const (
	ReasonAllowParty       = "AUTHZ_ALLOW_PARTY"
	ReasonAllowAuditor     = "AUTHZ_ALLOW_AUDITOR"
	ReasonAllowCreate      = "AUTHZ_ALLOW_CREATE"
	ReasonDenyNotAParty    = "AUTHZ_DENY_NOT_A_PARTY"
	ReasonDenyRole         = "AUTHZ_DENY_ROLE"
	ReasonDenyAnonymous    = "AUTHZ_DENY_ANONYMOUS"
	ReasonDenyUnknownRoute = "AUTHZ_DENY_UNKNOWN_ACTION"
)

// Rule grants one action to one role.
type Rule struct {
	Role   Role
	Action Action
}

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed    bool
	ReasonCode string
}

// Err converts a denial into a domain error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.ReasonCode {
	case ReasonDenyAnonymous:
		return apperrors.New(apperrors.CodeUnauthenticated, "a principal is required")
	case ReasonDenyNotAParty:
		return apperrors.WithMetadata(apperrors.CodeNotAParty, "caller is not a party to the transaction",
			map[string]string{"reason": d.ReasonCode})
	default:
		return apperrors.WithMetadata(apperrors.CodePermissionDenied, "caller may not perform this action",
			map[string]string{"reason": d.ReasonCode})
	}
}

// PolicyTable lists every granted (role, action) pair.
func PolicyTable() []Rule {
	return []Rule{
		{Role: RoleParty, Action: ActionSign},
		{Role: RoleParty, Action: ActionExecute},
		{Role: RoleParty, Action: ActionCancel},
		{Role: RoleParty, Action: ActionReject},
		{Role: RoleParty, Action: ActionExpire},
		{Role: RoleParty, Action: ActionRead},
		{Role: RoleParty, Action: ActionReadAudit},
		{Role: RoleAuditor, Action: ActionExpire},
		{Role: RoleAuditor, Action: ActionRead},
		{Role: RoleAuditor, Action: ActionReadAudit},
	}
}

var granted = func() map[Rule]struct{} {
	out := make(map[Rule]struct{})
	for _, rule := range PolicyTable() {
		out[rule] = struct{}{}
	}
	return out
}()

// Can evaluates the static table for role and action.
func Can(role Role, action Action) Decision {
	if _, ok := granted[Rule{Role: role, Action: action}]; ok {
		if role == RoleAuditor {
			return Decision{Allowed: true, ReasonCode: ReasonAllowAuditor}
		}
		return Decision{Allowed: true, ReasonCode: ReasonAllowParty}
	}
	if role == RoleNone {
		return Decision{ReasonCode: ReasonDenyNotAParty}
	}
	return Decision{ReasonCode: ReasonDenyRole}
}

// Authorizer decides whether principal may act on a transaction. state is
// the zero State for ActionCreate.
type Authorizer interface {
	Authorize(ctx context.Context, principal string, action Action, state transaction.State) Decision
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, principal string, action Action, state transaction.State) Decision

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, principal string, action Action, state transaction.State) Decision {
	return f(ctx, principal, action, state)
}

// PartyPolicy grants actions to parties and read access to auditors.
type PartyPolicy struct {
	auditors map[string]struct{}
}

// NewPartyPolicy returns the default policy with the given auditor principals.
func NewPartyPolicy(auditors ...string) *PartyPolicy {
	set := make(map[string]struct{}, len(auditors))
	for _, auditor := range auditors {
		if auditor = strings.TrimSpace(auditor); auditor != "" {
			set[auditor] = struct{}{}
		}
	}
	return &PartyPolicy{auditors: set}
}

// IsAuditor reports whether principal is a configured auditor.
func (p *PartyPolicy) IsAuditor(principal string) bool {
	if p == nil {
		return false
	}
	_, ok := p.auditors[strings.TrimSpace(principal)]
	return ok
}

// RoleOf resolves the principal's role on state. Party membership wins over
// the auditor set.
func (p *PartyPolicy) RoleOf(principal string, state transaction.State) Role {
	if state.IsParty(principal) {
		return RoleParty
	}
	if p.IsAuditor(principal) {
		return RoleAuditor
	}
	return RoleNone
}

// Authorize implements Authorizer.
func (p *PartyPolicy) Authorize(_ context.Context, principal string, action Action, state transaction.State) Decision {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return Decision{ReasonCode: ReasonDenyAnonymous}
	}
	switch action {
	case ActionCreate:
		// Creator membership in the party list is a domain rule.
		return Decision{Allowed: true, ReasonCode: ReasonAllowCreate}
	case ActionSign, ActionExecute, ActionCancel, ActionReject, ActionExpire, ActionRead, ActionReadAudit:
		return Can(p.RoleOf(principal, state), action)
	default:
		return Decision{ReasonCode: ReasonDenyUnknownRoute}
	}
}

var _ Authorizer = (*PartyPolicy)(nil)
