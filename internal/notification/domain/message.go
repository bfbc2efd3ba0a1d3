package domain

// Kind discriminates notification types. Clients route on it through the
// "type" data key.
type Kind string

const (
	KindKPIReminder        Kind = "kpi_reminder"
	KindEventOwnerReminder Kind = "event_owner_reminder"
	KindEventSameDay       Kind = "event_same_day_reminder"
	KindEventOverdue       Kind = "event_overdue_reminder"
	KindCalendarDigest     Kind = "calendar_digest"
	KindEventCreated       Kind = "event_created"
	KindEventRescheduled   Kind = "event_rescheduled"
	KindEventCancelled     Kind = "event_cancelled"
	KindEventCompleted     Kind = "event_completed"
	KindEventDeleted       Kind = "event_deleted"
)

// Priority is the delivery urgency hint passed to the platforms.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Message is the payload for one notification. It is built once per
// recipient and fanned out to each of the recipient's tokens.
type Message struct {
	Kind     Kind
	Title    string
	Body     string
	Data     map[string]string // client-side routing
	Link     string            // deep link opened on click
	Priority Priority
}

// TokenSource tells where a token was resolved from, which decides the
// cleanup applied when the transport rejects it permanently.
type TokenSource int

const (
	SourceDevice TokenSource = iota
	SourceLegacy
)

// Target is one deliverable (recipient, token) pair.
type Target struct {
	UserID string
	Token  string
	Source TokenSource
}

// Outgoing is a message addressed to one target.
type Outgoing struct {
	Target  Target
	Message Message
}

// Transport error codes that mean the token will never work again.
const (
	ErrorCodeTokenNotRegistered = "messaging/registration-token-not-registered"
	ErrorCodeInvalidArgument    = "messaging/invalid-argument"
)

// Result is the transport's verdict for one outgoing message.
type Result struct {
	Success   bool
	ErrorCode string
	Err       error
	// Dispatched is false when the message never reached the transport.
	Dispatched bool
}

// IsPermanentFailure reports whether the token should be cleaned up.
func (r Result) IsPermanentFailure() bool {
	return !r.Success && (r.ErrorCode == ErrorCodeTokenNotRegistered || r.ErrorCode == ErrorCodeInvalidArgument)
}
