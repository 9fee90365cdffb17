package models

import "fmt"

// Status is the lifecycle state shared by Transaction and Payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in declaration order.
var AllStatuses = []Status{StatusPending, StatusPaid, StatusFailed, StatusExpired, StatusCancelled}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is an outcome (anything but pending).
func (s Status) IsTerminal() bool {
	return s.Valid() && s != StatusPending
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// CanTransition decides whether an authoritative update may move a payment
// from current to next. Paid never changes. A paid outcome may still land on
// a failed/expired/cancelled payment because the gateway confirmed the money;
// every other change out of a terminal state is refused.
func CanTransition(current, next Status) bool {
	if !current.Valid() || !next.Valid() || current == next {
		return false
	}
	switch current {
	case StatusPending:
		return true
	case StatusPaid:
		return false
	default:
		return next == StatusPaid
	}
}
