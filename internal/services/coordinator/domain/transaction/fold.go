package transaction

import "encoding/json"

// Fold applies an event to transaction state.
func Fold(state State, evt Event) State {
	switch evt.Type {
	case EventCreated:
		var payload CreatedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state = State{
			Created:             true,
			ID:                  evt.TransactionID,
			Kind:                payload.Kind,
			Status:              StatusCreated,
			Jurisdiction:        payload.Jurisdiction,
			AssetIDs:            append([]string(nil), payload.AssetIDs...),
			Parties:             append([]Party(nil), payload.Parties...),
			MetadataFingerprint: payload.MetadataFingerprint,
			CreatedBy:           evt.ActorID,
			ComplianceRefs:      append([]string(nil), payload.ComplianceRefs...),
			CreatedAt:           evt.Timestamp,
			UpdatedAt:           evt.Timestamp,
			ExpiresAt:           payload.ExpiresAt,
		}
		return state
	case EventSigned:
		var payload SignedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		parties := append([]Party(nil), state.Parties...)
		for i := range parties {
			if parties[i].Principal == payload.Principal && !parties[i].HasSigned {
				parties[i].HasSigned = true
				parties[i].SignedAt = payload.SignedAt
			}
		}
		state.Parties = parties
	case EventExecuted:
		var payload ExecutedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.ComplianceRefs = appendUnique(state.ComplianceRefs, payload.ComplianceRefs...)
	}

	if evt.Transition() && evt.To != StatusUnspecified {
		state.Status = evt.To
	}
	if evt.MutatesState() && !evt.Timestamp.IsZero() {
		state.UpdatedAt = evt.Timestamp
	}
	return state
}

// FoldAll replays events in order.
func FoldAll(state State, events []Event) State {
	for _, evt := range events {
		state = Fold(state, evt)
	}
	return state
}

func appendUnique(base []string, values ...string) []string {
	out := append([]string(nil), base...)
	for _, value := range values {
		found := false
		for _, existing := range out {
			if existing == value {
				found = true
				break
			}
		}
		if !found && value != "" {
			out = append(out, value)
		}
	}
	return out
}
