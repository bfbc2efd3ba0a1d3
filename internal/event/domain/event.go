package domain

import "time"

// Status represents the current state of an event
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsOpen reports whether the event still awaits work.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// Creator identifies who created an event
type Creator struct {
	UserID string `firestore:"userId"`
	Name   string `firestore:"name"`
}

// Event is a calendar event or task as stored in the events collection
type Event struct {
	ID            string    `firestore:"-"`
	Title         string    `firestore:"title"`
	Description   string    `firestore:"description"`
	Status        Status    `firestore:"status"`
	StartDateTime time.Time `firestore:"startDateTime"`
	Assignees     []string  `firestore:"assignees"`
	OwnerID       string    `firestore:"ownerId"`
	CreatedBy     Creator   `firestore:"createdBy"`
	Centers       []string  `firestore:"centers"`
}

// Owners is the creator plus every assignee, each once, creator first.
func (e *Event) Owners() []string {
	return uniqueIDs(append([]string{e.CreatedBy.UserID}, e.Assignees...))
}

// Stakeholders is every assignee plus the owner and the creator, each once.
func (e *Event) Stakeholders() []string {
	ids := append([]string{}, e.Assignees...)
	return uniqueIDs(append(ids, e.OwnerID, e.CreatedBy.UserID))
}

// StartsOn reports whether the event starts on the calendar day of day in loc.
func (e *Event) StartsOn(day time.Time, loc *time.Location) bool {
	if e.StartDateTime.IsZero() {
		return false
	}
	y1, m1, d1 := e.StartDateTime.In(loc).Date()
	y2, m2, d2 := day.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsOverdue reports whether an open event's start time has passed.
func (e *Event) IsOverdue(now time.Time) bool {
	return e.Status.IsOpen() && !e.StartDateTime.IsZero() && e.StartDateTime.Before(now)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
