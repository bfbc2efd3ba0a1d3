package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	authdomain "mentorhub-backend/internal/auth/domain"
	authrepo "mentorhub-backend/internal/auth/repository"
	"mentorhub-backend/internal/event/domain"
	"mentorhub-backend/internal/event/repository"
	ndomain "mentorhub-backend/internal/notification/domain"
	"mentorhub-backend/internal/notification/routing"
	nusecase "mentorhub-backend/internal/notification/usecase"
)

// Trigger names reported in summaries
const (
	TriggerOwnerReminder   = "event_owner_reminder"
	TriggerSameDayReminder = "event_same_day_reminder"
	TriggerOverdueReminder = "event_overdue_reminder"
	TriggerCalendarDigest  = "calendar_digest"
	TriggerEventChange     = "event_change"
)

// EventUsecase sends event reminders and reacts to event changes
type EventUsecase struct {
	events  repository.EventRepository
	users   authrepo.UserRepository
	engine  *nusecase.Engine
	loc     *time.Location
	baseURL string
	now     func() time.Time
}

// NewEventUsecase creates a new instance of EventUsecase. Calendar days are
// computed in loc.
func NewEventUsecase(
	events repository.EventRepository,
	users authrepo.UserRepository,
	engine *nusecase.Engine,
	loc *time.Location,
	baseURL string,
) *EventUsecase {
	if loc == nil {
		loc = time.UTC
	}
	return &EventUsecase{
		events:  events,
		users:   users,
		engine:  engine,
		loc:     loc,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// SendOwnerReminders reminds creators and assignees of events starting on the
// next calendar day.
func (u *EventUsecase) SendOwnerReminders(ctx context.Context, opts nusecase.Options) (*nusecase.Summary, error) {
	now := u.now()
	from := startOfDay(now, u.loc).AddDate(0, 0, 1)
	events, err := u.events.FindStartingBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("find tomorrow's events: %w", err)
	}

	var deliveries []nusecase.Delivery
	for _, ev := range events {
		if !ev.Status.IsOpen() {
			continue
		}
		key := ndomain.DailyKey(ndomain.KindEventOwnerReminder, ev.ID, now, u.loc)
		msg := u.eventMessage(ndomain.KindEventOwnerReminder, ev,
			"Event tomorrow",
			fmt.Sprintf("%s starts tomorrow at %s.", ev.Title, u.clock(ev.StartDateTime)))
		for _, id := range routing.EventOwners(ev) {
			deliveries = append(deliveries, delivery(id, msg, &key))
		}
	}
	log.Printf("[Events] %d events tomorrow, %d owner reminders", len(events), len(deliveries))
	return u.dispatch(ctx, TriggerOwnerReminder, deliveries, opts)
}

// SendSameDayReminders reminds owners and Quality users of today's events that
// have not started yet.
func (u *EventUsecase) SendSameDayReminders(ctx context.Context, opts nusecase.Options) (*nusecase.Summary, error) {
	now := u.now()
	from := startOfDay(now, u.loc)
	events, err := u.events.FindStartingBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("find today's events: %w", err)
	}
	quality, err := u.users.ListByRoles(ctx, authdomain.RoleQuality)
	if err != nil {
		return nil, fmt.Errorf("list quality users: %w", err)
	}

	var deliveries []nusecase.Delivery
	for _, ev := range events {
		if !ev.Status.IsOpen() || !ev.StartDateTime.After(now) {
			continue
		}
		key := ndomain.DailyKey(ndomain.KindEventSameDay, ev.ID, now, u.loc)
		msg := u.eventMessage(ndomain.KindEventSameDay, ev,
			"Event today",
			fmt.Sprintf("%s starts today at %s.", ev.Title, u.clock(ev.StartDateTime)))
		for _, id := range routing.SameDayRecipients(ev, quality) {
			deliveries = append(deliveries, delivery(id, msg, &key))
		}
	}
	log.Printf("[Events] %d events today, %d same-day reminders", len(events), len(deliveries))
	return u.dispatch(ctx, TriggerSameDayReminder, deliveries, opts)
}

// SendOverdueReminders sends each assignee one consolidated reminder listing
// how many open events are past their start time.
func (u *EventUsecase) SendOverdueReminders(ctx context.Context, opts nusecase.Options) (*nusecase.Summary, error) {
	now := u.now()
	events, err := u.events.FindOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find overdue events: %w", err)
	}

	overdue := make(map[string][]*domain.Event)
	for _, ev := range events {
		if !ev.IsOverdue(now) {
			continue
		}
		for _, id := range routing.AssigneeRecipients(ev) {
			overdue[id] = append(overdue[id], ev)
		}
	}
	assignees := make([]string, 0, len(overdue))
	for id := range overdue {
		assignees = append(assignees, id)
	}
	sort.Strings(assignees)

	key := ndomain.WeeklyKey(ndomain.KindEventOverdue, "", now, u.loc)
	deliveries := make([]nusecase.Delivery, 0, len(assignees))
	for _, id := range assignees {
		evs := overdue[id]
		deliveries = append(deliveries, delivery(id, ndomain.Message{
			Kind:     ndomain.KindEventOverdue,
			Title:    "Overdue events",
			Body:     fmt.Sprintf("You have %d overdue event(s), oldest: %s.", len(evs), oldest(evs).Title),
			Data:     map[string]string{"count": strconv.Itoa(len(evs))},
			Link:     u.baseURL + "/calendar",
			Priority: ndomain.PriorityNormal,
		}, &key))
	}
	log.Printf("[Events] %d overdue events across %d assignees", len(events), len(assignees))
	return u.dispatch(ctx, TriggerOverdueReminder, deliveries, opts)
}

// SendCalendarDigest broadcasts today's agenda to every user. It is not
// deduplicated; a rerun sends again.
func (u *EventUsecase) SendCalendarDigest(ctx context.Context, opts nusecase.Options) (*nusecase.Summary, error) {
	now := u.now()
	from := startOfDay(now, u.loc)
	events, err := u.events.FindStartingBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("find today's events: %w", err)
	}

	var open []*domain.Event
	for _, ev := range events {
		if ev.Status.IsOpen() {
			open = append(open, ev)
		}
	}
	summary := nusecase.NewSummary(TriggerCalendarDigest, opts)
	if len(open) == 0 {
		log.Println("[Events] No events today, digest skipped")
		return summary, nil
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartDateTime.Before(open[j].StartDateTime) })

	msg := ndomain.Message{
		Kind:     ndomain.KindCalendarDigest,
		Title:    fmt.Sprintf("Today's calendar: %d event(s)", len(open)),
		Body:     u.agenda(open),
		Data:     map[string]string{"count": strconv.Itoa(len(open))},
		Link:     u.baseURL + "/calendar",
		Priority: ndomain.PriorityNormal,
	}
	report, err := u.engine.Broadcast(ctx, msg, opts)
	summary.Add(report)
	return summary, err
}

// HandleChange notifies the recipients of every transition in change. Errors
// are returned for logging only; they must never affect the event itself.
func (u *EventUsecase) HandleChange(ctx context.Context, change domain.Change, opts nusecase.Options) (*nusecase.Summary, error) {
	summary := nusecase.NewSummary(TriggerEventChange, opts)
	var errs []error
	for _, tr := range change.Transitions() {
		report, err := u.handleTransition(ctx, tr, change, opts)
		summary.Add(report)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tr, err))
		}
	}
	return summary, errors.Join(errs...)
}

func (u *EventUsecase) handleTransition(ctx context.Context, tr domain.Transition, change domain.Change, opts nusecase.Options) (*nusecase.Report, error) {
	switch tr {
	case domain.TransitionCreated:
		ev := change.After
		msg := u.eventMessage(ndomain.KindEventCreated, ev, "New event",
			fmt.Sprintf("%s on %s.", ev.Title, u.dateTime(ev.StartDateTime)))
		log.Printf("[Events] Event %s created, broadcasting", ev.ID)
		return u.engine.Broadcast(ctx, msg, opts)

	case domain.TransitionRescheduled:
		ev := change.After
		msg := u.eventMessage(ndomain.KindEventRescheduled, ev, "Event rescheduled",
			fmt.Sprintf("%s moved to %s.", ev.Title, u.dateTime(ev.StartDateTime)))
		msg.Priority = ndomain.PriorityHigh
		return u.engine.Dispatch(ctx, deliveries(routing.AssigneeRecipients(ev), msg), opts)

	case domain.TransitionCancelled:
		ev := change.After
		msg := u.eventMessage(ndomain.KindEventCancelled, ev, "Event cancelled",
			fmt.Sprintf("%s on %s was cancelled.", ev.Title, u.dateTime(ev.StartDateTime)))
		msg.Priority = ndomain.PriorityHigh
		return u.engine.Dispatch(ctx, deliveries(routing.AssigneeRecipients(ev), msg), opts)

	case domain.TransitionCompleted:
		ev := change.After
		supervisors, err := u.users.ListByRoles(ctx, authdomain.RoleAdmin, authdomain.RoleQuality)
		if err != nil {
			return nil, fmt.Errorf("list supervisors: %w", err)
		}
		msg := u.eventMessage(ndomain.KindEventCompleted, ev, "Event completed",
			fmt.Sprintf("%s was marked completed.", ev.Title))
		return u.engine.Dispatch(ctx, deliveries(routing.Supervisors(supervisors), msg), opts)

	case domain.TransitionDeleted:
		ev := change.Before
		supervisors, err := u.users.ListByRoles(ctx, authdomain.RoleAdmin, authdomain.RoleQuality)
		if err != nil {
			return nil, fmt.Errorf("list supervisors: %w", err)
		}
		msg := u.eventMessage(ndomain.KindEventDeleted, ev, "Event deleted",
			fmt.Sprintf("%s on %s was deleted.", ev.Title, u.dateTime(ev.StartDateTime)))
		msg.Link = u.baseURL + "/calendar"
		return u.engine.Dispatch(ctx, deliveries(routing.DeletionRecipients(ev, supervisors), msg), opts)
	}
	return nil, nil
}

func (u *EventUsecase) dispatch(ctx context.Context, trigger string, deliveries []nusecase.Delivery, opts nusecase.Options) (*nusecase.Summary, error) {
	summary := nusecase.NewSummary(trigger, opts)
	report, err := u.engine.Dispatch(ctx, deliveries, opts)
	summary.Add(report)
	return summary, err
}

func (u *EventUsecase) eventMessage(kind ndomain.Kind, ev *domain.Event, title, body string) ndomain.Message {
	return ndomain.Message{
		Kind:  kind,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"eventId": ev.ID,
			"status":  string(ev.Status),
		},
		Link:     u.baseURL + "/calendar/" + ev.ID,
		Priority: ndomain.PriorityNormal,
	}
}

func (u *EventUsecase) agenda(events []*domain.Event) string {
	const shown = 3
	lines := make([]string, 0, shown+1)
	for i, ev := range events {
		if i == shown {
			lines = append(lines, fmt.Sprintf("and %d more", len(events)-shown))
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s", u.clock(ev.StartDateTime), ev.Title))
	}
	return strings.Join(lines, "\n")
}

func (u *EventUsecase) clock(t time.Time) string {
	return t.In(u.loc).Format("15:04")
}

func (u *EventUsecase) dateTime(t time.Time) string {
	return t.In(u.loc).Format("02 Jan 2006 15:04")
}

func delivery(recipientID string, msg ndomain.Message, key *ndomain.DedupKey) nusecase.Delivery {
	return nusecase.Delivery{RecipientID: recipientID, Message: msg, DedupKey: key}
}

func deliveries(recipients []string, msg ndomain.Message) []nusecase.Delivery {
	out := make([]nusecase.Delivery, 0, len(recipients))
	for _, id := range recipients {
		out = append(out, delivery(id, msg, nil))
	}
	return out
}

func oldest(events []*domain.Event) *domain.Event {
	first := events[0]
	for _, ev := range events[1:] {
		if ev.StartDateTime.Before(first.StartDateTime) {
			first = ev
		}
	}
	return first
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
