package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	authrepo "mentorhub-backend/internal/auth/repository"
	"mentorhub-backend/internal/event/domain"
	"mentorhub-backend/internal/event/repository"
	nrepo "mentorhub-backend/internal/notification/repository"
	nusecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/pkg/docstore"
	"mentorhub-backend/pkg/fcm"
)

var testNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type recordingTransport struct {
	mu   sync.Mutex
	msgs []fcm.Message
}

func (r *recordingTransport) SendEach(ctx context.Context, msgs []fcm.Message) ([]fcm.SendResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
	results := make([]fcm.SendResult, len(msgs))
	for i := range results {
		results[i] = fcm.SendResult{Success: true}
	}
	return results, nil
}

func (r *recordingTransport) tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Token
	}
	sort.Strings(out)
	return out
}

type fixture struct {
	store     *docstore.Memory
	transport *recordingTransport
	usecase   *EventUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := docstore.NewMemory()
	users := authrepo.NewUserRepository(store)
	devices := authrepo.NewDeviceRepository(store)
	transport := &recordingTransport{}
	engine := nusecase.NewEngine(
		nusecase.NewTokenResolver(users, devices, 4, time.Second),
		nrepo.NewDedupRepository(store),
		nusecase.NewBatchSender(transport, devices, nusecase.SenderOptions{}),
		time.Second,
	)

	uc := NewEventUsecase(repository.NewEventRepository(store), users, engine, time.UTC, "https://dash.example")
	uc.now = func() time.Time { return testNow }

	return &fixture{store: store, transport: transport, usecase: uc}
}

func (f *fixture) user(id, role, token string, centers ...string) {
	fields := map[string]interface{}{"role": role}
	if token != "" {
		fields["fcmToken"] = token
	}
	if len(centers) > 0 {
		fields["assignedCenters"] = centers
	}
	f.store.Put(authrepo.UsersCollection, id, fields)
}

func (f *fixture) event(id string, status domain.Status, start time.Time, creator string, assignees ...string) {
	f.store.Put(repository.EventsCollection, id, map[string]interface{}{
		"title":         "Event " + id,
		"status":        string(status),
		"startDateTime": start,
		"assignees":     assignees,
		"ownerId":       creator,
		"createdBy":     map[string]interface{}{"userId": creator},
		"centers":       []string{"south"},
	})
}

func assertTokens(t *testing.T, got []string, want ...string) {
	t.Helper()
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sent to %v, want %v", got, want)
	}
}

func TestCompletedEventNotifiesSupervisorsOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("admin1", "Admin", "tok-admin")
	f.user("qa1", "QUALITY", "tok-qa")
	f.user("admin-silent", "admin", "")
	f.user("u1", "user", "tok-user")

	before := &domain.Event{ID: "ev1", Title: "Audit", Status: domain.StatusInProgress, Assignees: []string{"u1", "admin1"}}
	after := *before
	after.Status = domain.StatusCompleted

	summary, err := f.usecase.HandleChange(context.Background(), domain.Change{Kind: domain.ChangeUpdate, Before: before, After: &after}, nusecase.Options{})
	if err != nil {
		t.Fatalf("HandleChange() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-admin", "tok-qa")
	if summary.NotificationCount != 2 {
		t.Errorf("NotificationCount = %d, want 2", summary.NotificationCount)
	}
}

func TestRescheduleIsHighPriorityToAssignees(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("a1", "user", "tok-a1")
	f.user("c1", "coordinator", "tok-c1")

	start := testNow.Add(48 * time.Hour)
	before := &domain.Event{ID: "ev1", Status: domain.StatusPending, StartDateTime: start, Assignees: []string{"a1"}, CreatedBy: domain.Creator{UserID: "c1"}}
	after := *before
	after.StartDateTime = start.Add(2 * time.Hour)

	if _, err := f.usecase.HandleChange(context.Background(), domain.Change{Kind: domain.ChangeUpdate, Before: before, After: &after}, nusecase.Options{}); err != nil {
		t.Fatalf("HandleChange() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-a1")
	if !f.transport.msgs[0].HighPriority {
		t.Error("reschedule notice is not high priority")
	}
	if f.transport.msgs[0].Data["type"] != "event_rescheduled" {
		t.Errorf("type = %q", f.transport.msgs[0].Data["type"])
	}
}

func TestChangeKeepsGoingAfterFailedTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("a1", "user", "tok-a1")

	start := testNow.Add(48 * time.Hour)
	before := &domain.Event{ID: "ev1", Status: domain.StatusPending, StartDateTime: start, Assignees: []string{"a1"}}
	after := *before
	after.StartDateTime = start.Add(time.Hour)
	after.Status = domain.StatusCancelled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.usecase.HandleChange(ctx, domain.Change{Kind: domain.ChangeUpdate, Before: before, After: &after}, nusecase.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("HandleChange() error = %v, want context.Canceled", err)
	}
	for _, tr := range []domain.Transition{domain.TransitionRescheduled, domain.TransitionCancelled} {
		if !strings.Contains(err.Error(), string(tr)) {
			t.Errorf("error %q does not report the %s transition", err, tr)
		}
	}
}

func TestDeletedEventNotifiesEveryStakeholderOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("a1", "user", "tok-a1")
	f.user("o1", "coordinator", "tok-o1")
	f.user("c1", "user", "tok-c1")
	f.user("qa1", "quality", "tok-qa1")
	f.user("admin1", "admin", "tok-admin")
	f.user("u9", "user", "tok-u9")

	ev := &domain.Event{
		ID:        "ev1",
		Assignees: []string{"a1", "qa1"},
		OwnerID:   "o1",
		CreatedBy: domain.Creator{UserID: "c1"},
	}
	if _, err := f.usecase.HandleChange(context.Background(), domain.Change{Kind: domain.ChangeDelete, Before: ev}, nusecase.Options{}); err != nil {
		t.Fatalf("HandleChange() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-a1", "tok-o1", "tok-c1", "tok-qa1", "tok-admin")
}

func TestCreatedEventBroadcasts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("a1", "user", "tok-a1")
	f.user("b1", "admin", "tok-b1")
	f.user("n1", "user", "")

	ev := &domain.Event{ID: "ev1", Title: "Townhall", StartDateTime: testNow.Add(72 * time.Hour)}
	if _, err := f.usecase.HandleChange(context.Background(), domain.Change{Kind: domain.ChangeCreate, After: ev}, nusecase.Options{}); err != nil {
		t.Fatalf("HandleChange() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-a1", "tok-b1")
}

func TestOwnerRemindersAreDedupedPerDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.user("c1", "coordinator", "tok-c1")
	f.user("a1", "user", "tok-a1")
	f.event("tomorrow", domain.StatusPending, testNow.Add(26*time.Hour), "c1", "a1", "c1")
	f.event("done", domain.StatusCompleted, testNow.Add(26*time.Hour), "c1", "a1")
	f.event("later", domain.StatusPending, testNow.Add(72*time.Hour), "c1", "a1")

	summary, err := f.usecase.SendOwnerReminders(ctx, nusecase.Options{})
	if err != nil {
		t.Fatalf("SendOwnerReminders() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-a1", "tok-c1")
	if summary.NotificationCount != 2 {
		t.Errorf("NotificationCount = %d, want 2", summary.NotificationCount)
	}

	again, err := f.usecase.SendOwnerReminders(ctx, nusecase.Options{})
	if err != nil {
		t.Fatalf("SendOwnerReminders() error: %v", err)
	}
	if again.NotificationCount != 0 || len(f.transport.msgs) != 2 {
		t.Errorf("second run sent %d, want nothing new", again.NotificationCount)
	}
}

func TestSameDayRemindersIncludeQuality(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("c1", "coordinator", "tok-c1")
	f.user("qa-south", "quality", "tok-qs", "south")
	f.user("qa-north", "quality", "tok-qn", "north")
	f.event("upcoming", domain.StatusPending, testNow.Add(3*time.Hour), "c1")
	f.event("started", domain.StatusInProgress, testNow.Add(-time.Hour), "c1")

	if _, err := f.usecase.SendSameDayReminders(context.Background(), nusecase.Options{}); err != nil {
		t.Fatalf("SendSameDayReminders() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-c1", "tok-qs")
}

func TestOverdueRemindersAreConsolidated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.user("a1", "user", "tok-a1")
	f.user("a2", "user", "tok-a2")
	f.event("o1", domain.StatusPending, testNow.Add(-72*time.Hour), "c1", "a1")
	f.event("o2", domain.StatusInProgress, testNow.Add(-24*time.Hour), "c1", "a1", "a2")
	f.event("closed", domain.StatusCompleted, testNow.Add(-24*time.Hour), "c1", "a2")

	if _, err := f.usecase.SendOverdueReminders(context.Background(), nusecase.Options{}); err != nil {
		t.Fatalf("SendOverdueReminders() error: %v", err)
	}
	assertTokens(t, f.transport.tokens(), "tok-a1", "tok-a2")
	for _, m := range f.transport.msgs {
		if m.Token == "tok-a1" && !strings.Contains(m.Body, "2 overdue") {
			t.Errorf("a1 body = %q, want 2 overdue", m.Body)
		}
		if m.Token == "tok-a2" && !strings.Contains(m.Body, "1 overdue") {
			t.Errorf("a2 body = %q, want 1 overdue", m.Body)
		}
	}
}

func TestCalendarDigest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.user("a1", "user", "tok-a1")
	f.user("b1", "quality", "tok-b1")

	empty, err := f.usecase.SendCalendarDigest(ctx, nusecase.Options{})
	if err != nil {
		t.Fatalf("SendCalendarDigest() error: %v", err)
	}
	if empty.NotificationCount != 0 || len(f.transport.msgs) != 0 {
		t.Error("digest sent with no events")
	}

	f.event("today", domain.StatusPending, testNow.Add(2*time.Hour), "a1")
	if _, err := f.usecase.SendCalendarDigest(ctx, nusecase.Options{}); err != nil {
		t.Fatalf("SendCalendarDigest() error: %v", err)
	}
	if _, err := f.usecase.SendCalendarDigest(ctx, nusecase.Options{}); err != nil {
		t.Fatalf("SendCalendarDigest() error: %v", err)
	}
	// not deduplicated
	if len(f.transport.msgs) != 4 {
		t.Errorf("sent %d messages over two runs, want 4", len(f.transport.msgs))
	}
}
