package transaction

import "strings"

// Status is the transaction lifecycle state.
type Status string

const (
	StatusUnspecified Status = ""
	StatusCreated     Status = "CREATED"
	StatusPending     Status = "PENDING"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusExecuted    Status = "EXECUTED"
	StatusCancelled   Status = "CANCELLED"
	StatusExpired     Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusUnspecified: {StatusCreated},
	StatusCreated:     {StatusPending, StatusApproved, StatusCancelled, StatusRejected, StatusExpired},
	StatusPending:     {StatusApproved, StatusCancelled, StatusRejected, StatusExpired},
	StatusApproved:    {StatusExecuted, StatusCancelled, StatusExpired},
	StatusRejected:    {StatusCancelled},
	StatusExpired:     {StatusCancelled},
}

// Statuses lists every lifecycle state.
func Statuses() []Status {
	return []Status{StatusCreated, StatusPending, StatusApproved, StatusRejected, StatusExecuted, StatusCancelled, StatusExpired}
}

// ParseStatus canonicalizes a status label.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.TrimPrefix(normalized, "TRANSACTION_STATUS_")
	for _, status := range Statuses() {
		if string(status) == normalized {
			return status, true
		}
	}
	return StatusUnspecified, false
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no signing or execution can follow.
func (s Status) Terminal() bool {
	switch s {
	case StatusExecuted, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Expirable reports whether lazy expiry applies to the status.
func (s Status) Expirable() bool {
	switch s {
	case StatusCreated, StatusPending, StatusApproved:
		return true
	default:
		return false
	}
}

// Cancellable reports whether Cancel is accepted from the status.
func (s Status) Cancellable() bool {
	return CanTransition(s, StatusCancelled)
}
