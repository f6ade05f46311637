package transaction

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/assetflow/internal/platform/errors"
)

// Decide returns the decision for a transaction command against current state.
// Accepted commands emit events in the order they must be folded and stored.
func Decide(state State, cmd Command, now func() time.Time) Decision {
	if now == nil {
		now = time.Now
	}
	at := now().UTC().Truncate(time.Millisecond)

	if c, ok := cmd.(Create); ok {
		return decideCreate(state, c, at)
	}
	if !state.Created {
		return rejection(apperrors.CodeNotFound, "transaction does not exist", "resource", "transaction")
	}

	switch c := cmd.(type) {
	case Sign:
		return decideSign(state, c, at)
	case Execute:
		return decideExecute(state, c.ActorID, at)
	case CompleteExecution:
		return decideCompleteExecution(state, c, at)
	case FailExecution:
		return decideFailExecution(state, c, at)
	case RecordComplianceRejection:
		return decideComplianceRejection(state, c, at)
	case Cancel:
		return decideCancel(state, c, at)
	case Reject:
		return decideReject(state, c, at)
	case Expire:
		return decideExpire(state, c, at)
	default:
		return rejection(apperrors.CodeInvalidArgument, "unsupported command", "field", "command")
	}
}

func decideCreate(state State, c Create, at time.Time) Decision {
	if state.Created {
		return rejection(apperrors.CodeInvalidState, "transaction already exists",
			"status", string(state.Status), "operation", "created")
	}
	if strings.TrimSpace(c.TransactionID) == "" {
		return rejection(apperrors.CodeInvalidArgument, "transaction id is required", "field", "transaction_id")
	}
	if _, ok := ParseKind(string(c.Kind)); !ok {
		return rejection(apperrors.CodeInvalidKind, "transaction kind is not supported", "kind", string(c.Kind))
	}
	jurisdiction := strings.TrimSpace(c.Jurisdiction)
	if jurisdiction == "" {
		return rejection(apperrors.CodeInvalidArgument, "jurisdiction is required", "field", "jurisdiction")
	}
	if len(c.Parties) == 0 {
		return rejection(apperrors.CodeEmptyPartyList, "at least one party is required")
	}

	actor := strings.TrimSpace(c.ActorID)
	parties := make([]Party, 0, len(c.Parties))
	seen := make(map[string]struct{}, len(c.Parties))
	for _, input := range c.Parties {
		principal := strings.TrimSpace(input.Principal)
		if principal == "" {
			return rejection(apperrors.CodeInvalidArgument, "party principal is required", "field", "parties.principal")
		}
		if _, dup := seen[principal]; dup {
			return rejection(apperrors.CodeDuplicateParty, "party listed more than once", "principal", principal)
		}
		seen[principal] = struct{}{}
		parties = append(parties, Party{Principal: principal, Role: strings.TrimSpace(input.Role)})
	}
	if _, ok := seen[actor]; !ok || actor == "" {
		return rejection(apperrors.CodeCreatorNotAParty, "creator must be one of the parties", "principal", actor)
	}

	assetIDs := make([]string, 0, len(c.AssetIDs))
	seenAssets := make(map[string]struct{}, len(c.AssetIDs))
	for _, assetID := range c.AssetIDs {
		assetID = strings.TrimSpace(assetID)
		if assetID == "" {
			return rejection(apperrors.CodeInvalidArgument, "asset id is required", "field", "asset_ids")
		}
		if _, dup := seenAssets[assetID]; dup {
			return rejection(apperrors.CodeInvalidArgument, "asset listed more than once", "field", "asset_ids")
		}
		seenAssets[assetID] = struct{}{}
		assetIDs = append(assetIDs, assetID)
	}

	var expiresAt *time.Time
	if c.ExpiresAt != nil {
		value := c.ExpiresAt.UTC().Truncate(time.Millisecond)
		if !value.After(at) {
			return rejection(apperrors.CodeInvalidArgument, "expiry must be in the future", "field", "expires_at")
		}
		expiresAt = &value
	}

	kind, _ := ParseKind(string(c.Kind))
	created := Event{
		TransactionID: c.TransactionID,
		Type:          EventCreated,
		ActorID:       actor,
		From:          StatusUnspecified,
		To:            StatusCreated,
		Timestamp:     at,
		PayloadJSON: mustPayload(CreatedPayload{
			Kind:                kind,
			Jurisdiction:        jurisdiction,
			AssetIDs:            assetIDs,
			Parties:             parties,
			MetadataFingerprint: strings.TrimSpace(c.MetadataFingerprint),
			ExpiresAt:           expiresAt,
			ComplianceRefs:      append([]string(nil), c.ComplianceRefs...),
		}),
	}
	next := Fold(State{}, created)
	events := []Event{created}
	events = append(events, signEvents(next, actor, "", at)...)
	return Accept(events...)
}

// signEvents marks principal signed on state and appends the status edges the
// signature unlocks.
func signEvents(state State, principal, evidence string, at time.Time) []Event {
	party, _ := state.Party(principal)
	signed := Event{
		TransactionID: state.ID,
		Type:          EventSigned,
		ActorID:       principal,
		From:          state.Status,
		To:            state.Status,
		Timestamp:     at,
		PayloadJSON: mustPayload(SignedPayload{
			Principal: principal,
			Role:      party.Role,
			SignedAt:  at,
			Evidence:  evidence,
			Signed:    state.SignedCount() + 1,
			Required:  len(state.Parties),
		}),
	}
	events := []Event{signed}
	next := Fold(state, signed)

	// Any signature beyond the creator's opens collection.
	if next.Status == StatusCreated && next.SignedCount() > 1 {
		pending := transitionEvent(next, StatusPending, principal, at, StatusPayload{})
		events = append(events, pending)
		next = Fold(next, pending)
	}
	if next.AllSigned() {
		events = append(events, transitionEvent(next, StatusApproved, principal, at, StatusPayload{}))
	}
	return events
}

func transitionEvent(state State, to Status, actor string, at time.Time, payload StatusPayload) Event {
	return Event{
		TransactionID: state.ID,
		Type:          transitionEvents[to],
		ActorID:       actor,
		From:          state.Status,
		To:            to,
		Timestamp:     at,
		PayloadJSON:   mustPayload(payload),
	}
}

func decideSign(state State, c Sign, at time.Time) Decision {
	actor := strings.TrimSpace(c.ActorID)
	party, ok := state.Party(actor)
	if !ok {
		return notAParty(actor)
	}
	if party.HasSigned {
		return rejection(apperrors.CodeAlreadySigned, "party has already signed", "principal", actor)
	}
	if d, expired := expiredRejection(state, at); expired {
		return d
	}
	if state.Status != StatusCreated && state.Status != StatusPending {
		return invalidState(state.Status, "signed")
	}
	return Accept(signEvents(state, actor, strings.TrimSpace(c.Evidence), at)...)
}

func decideExecute(state State, actor string, at time.Time) Decision {
	actor = strings.TrimSpace(actor)
	if !state.IsParty(actor) {
		return notAParty(actor)
	}
	if d, expired := expiredRejection(state, at); expired {
		return d
	}
	if state.Status != StatusApproved {
		return invalidState(state.Status, "executed")
	}
	return Accept()
}

func decideCompleteExecution(state State, c CompleteExecution, at time.Time) Decision {
	if d := decideExecute(state, c.ActorID, at); d.Rejected() {
		return d
	}
	evt := transitionEvent(state, StatusExecuted, strings.TrimSpace(c.ActorID), at, StatusPayload{})
	evt.PayloadJSON = mustPayload(ExecutedPayload{
		Outcomes:       append([]AssetOutcome(nil), c.Outcomes...),
		ComplianceRefs: append([]string(nil), c.ComplianceRefs...),
	})
	return Accept(evt)
}

func decideFailExecution(state State, c FailExecution, at time.Time) Decision {
	actor := strings.TrimSpace(c.ActorID)
	if !state.IsParty(actor) {
		return notAParty(actor)
	}
	if state.Status != StatusApproved {
		return invalidState(state.Status, "executed")
	}
	return Accept(Event{
		TransactionID: state.ID,
		Type:          EventExecutionFailed,
		ActorID:       actor,
		From:          state.Status,
		To:            state.Status,
		Timestamp:     at,
		PayloadJSON: mustPayload(ExecutionFailedPayload{
			FailedAssetID: c.FailedAssetID,
			Cause:         c.Cause,
			Retryable:     c.Retryable,
			Outcomes:      append([]AssetOutcome(nil), c.Outcomes...),
		}),
	})
}

func decideComplianceRejection(state State, c RecordComplianceRejection, at time.Time) Decision {
	return Accept(Event{
		TransactionID: state.ID,
		Type:          EventComplianceRejected,
		ActorID:       strings.TrimSpace(c.ActorID),
		From:          state.Status,
		To:            state.Status,
		Timestamp:     at,
		PayloadJSON: mustPayload(ComplianceRejectedPayload{
			Operation:       c.Operation,
			Jurisdiction:    state.Jurisdiction,
			VerificationIDs: append([]string(nil), c.VerificationIDs...),
			Reason:          c.Reason,
		}),
	})
}

func decideCancel(state State, c Cancel, at time.Time) Decision {
	actor := strings.TrimSpace(c.ActorID)
	if !state.IsParty(actor) {
		return notAParty(actor)
	}
	if !state.Status.Cancellable() {
		return invalidState(state.Status, "cancelled")
	}
	payload := StatusPayload{Reason: strings.TrimSpace(c.Reason)}
	if observed := state.EffectiveStatus(at); observed != state.Status {
		payload.Observed = observed
	}
	return Accept(transitionEvent(state, StatusCancelled, actor, at, payload))
}

func decideReject(state State, c Reject, at time.Time) Decision {
	actor := strings.TrimSpace(c.ActorID)
	party, ok := state.Party(actor)
	if !ok {
		return notAParty(actor)
	}
	if party.HasSigned {
		return rejection(apperrors.CodeAlreadySigned, "a party that signed cannot reject", "principal", actor)
	}
	if d, expired := expiredRejection(state, at); expired {
		return d
	}
	if state.Status != StatusCreated && state.Status != StatusPending {
		return invalidState(state.Status, "rejected")
	}
	return Accept(transitionEvent(state, StatusRejected, actor, at, StatusPayload{Reason: strings.TrimSpace(c.Reason)}))
}

func decideExpire(state State, c Expire, at time.Time) Decision {
	if !state.Expired(at) {
		return invalidState(state.EffectiveStatus(at), "expired")
	}
	return Accept(transitionEvent(state, StatusExpired, strings.TrimSpace(c.ActorID), at, StatusPayload{}))
}

func expiredRejection(state State, at time.Time) (Decision, bool) {
	if state.Status != StatusExpired && !state.Expired(at) {
		return Decision{}, false
	}
	expires := ""
	if state.ExpiresAt != nil {
		expires = state.ExpiresAt.Format(time.RFC3339)
	}
	return rejection(apperrors.CodeTransactionExpired, "transaction has expired", "expires_at", expires), true
}

func notAParty(actor string) Decision {
	return rejection(apperrors.CodeNotAParty, "caller is not a party to the transaction", "principal", actor)
}

func invalidState(status Status, operation string) Decision {
	return rejection(apperrors.CodeInvalidState, "transaction status does not allow the operation",
		"status", string(status), "operation", operation)
}
