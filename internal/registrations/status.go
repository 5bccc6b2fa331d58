package registrations

// Status represents the lifecycle state of a registration
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the draft -> pending -> confirmed flow.
// Cancellation is allowed from any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPending || next == StatusCancelled
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
