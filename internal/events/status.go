package events

// EventStatus represents the lifecycle state of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted:
		return true
	default:
		return false
	}
}

// CanBeUpdated returns true if the event can still be modified
func (s EventStatus) CanBeUpdated() bool {
	return s == EventStatusDraft || s == EventStatusPublished
}

// CanBeDeleted returns true if the event can be removed entirely
func (s EventStatus) CanBeDeleted() bool {
	return s == EventStatusDraft
}

// CanAcceptRegistrations returns true if tickets can be reserved for the event
func (s EventStatus) CanAcceptRegistrations() bool {
	return s == EventStatusPublished
}
