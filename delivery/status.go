package delivery

import "fmt"

/* Status represents the current state of a delivery
 * Follows the lifecycle: Pending -> InFlight -> Delivered/Pending(retry)/Abandoned
 */
type Status int

const (
	Pending Status = iota + 1
	InFlight
	Delivered
	Failed
	Abandoned
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "in_flight":
		return InFlight
	case "delivered":
		return Delivered
	case "failed":
		return Failed
	case "abandoned":
		return Abandoned
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Abandoned {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsTerminal returns true if the status is a terminal state
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Abandoned
}
