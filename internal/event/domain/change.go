package domain

// ChangeKind is the document-level operation observed on an event.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Transition is what an event change means for notifications.
type Transition string

const (
	TransitionNone        Transition = ""
	TransitionCreated     Transition = "created"
	TransitionRescheduled Transition = "rescheduled"
	TransitionCancelled   Transition = "cancelled"
	TransitionCompleted   Transition = "completed"
	TransitionDeleted     Transition = "deleted"
)

// Change carries the before and after snapshots of one event document.
// Before is nil on create, After is nil on delete.
type Change struct {
	Kind   ChangeKind
	Before *Event
	After  *Event
}

// Transitions classifies an update. A single update can both reschedule and
// change status, in which case both are reported, reschedule first.
func (c Change) Transitions() []Transition {
	switch c.Kind {
	case ChangeCreate:
		if c.After != nil {
			return []Transition{TransitionCreated}
		}
	case ChangeDelete:
		if c.Before != nil {
			return []Transition{TransitionDeleted}
		}
	case ChangeUpdate:
		if c.Before == nil || c.After == nil {
			return nil
		}
		var out []Transition
		if !c.Before.StartDateTime.Equal(c.After.StartDateTime) && !c.After.StartDateTime.IsZero() {
			out = append(out, TransitionRescheduled)
		}
		if c.Before.Status != c.After.Status {
			switch c.After.Status {
			case StatusCancelled:
				out = append(out, TransitionCancelled)
			case StatusCompleted:
				out = append(out, TransitionCompleted)
			}
		}
		return out
	}
	return nil
}
