package transaction

import apperrors "github.com/louisbranch/assetflow/internal/platform/errors"

// Decision represents the pure outcome of handling a command.
type Decision struct {
	Events     []Event
	Rejections []Rejection
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code     apperrors.Code
	Message  string
	Metadata map[string]string
}

// Accept returns a decision that emits the provided events.
func Accept(events ...Event) Decision {
	return Decision{Events: append([]Event(nil), events...)}
}

// Decline returns a decision that carries the provided rejections.
func Decline(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// Rejected reports whether the command was declined.
func (d Decision) Rejected() bool {
	return len(d.Rejections) > 0
}

// Err converts the first rejection into a domain error.
func (d Decision) Err() error {
	if len(d.Rejections) == 0 {
		return nil
	}
	r := d.Rejections[0]
	return apperrors.WithMetadata(r.Code, r.Message, r.Metadata)
}

func rejection(code apperrors.Code, message string, kv ...string) Decision {
	var metadata map[string]string
	if len(kv) > 0 {
		metadata = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			metadata[kv[i]] = kv[i+1]
		}
	}
	return Decline(Rejection{Code: code, Message: message, Metadata: metadata})
}
