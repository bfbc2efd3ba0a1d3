package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	authrepo "mentorhub-backend/internal/auth/repository"
	"mentorhub-backend/internal/kpi/repository"
	ndomain "mentorhub-backend/internal/notification/domain"
	nrepo "mentorhub-backend/internal/notification/repository"
	nusecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/pkg/docstore"
	"mentorhub-backend/pkg/fcm"
)

var testNow = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

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

type fixture struct {
	store     *docstore.Memory
	transport *recordingTransport
	dedup     nrepo.DedupRepository
	reminder  *ReminderUsecase
}

// newFixture seeds scenario A: mentor m1 with form f1 assigned to e1, who
// has a single enabled device.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := docstore.NewMemory()
	store.Put(repository.MentorsCollection, "m1", map[string]interface{}{
		"name":              "Asha",
		"assignedFormIds":   []interface{}{"f1"},
		"assignedEvaluator": map[string]interface{}{"id": "e1", "name": "Eval One"},
	})
	store.Put(authrepo.UsersCollection, "e1", map[string]interface{}{"role": "Evaluator"})
	store.Put(docstore.SubPath(authrepo.UsersCollection, "e1", authrepo.DevicesSubcollection), "t1", map[string]interface{}{
		"token":   "t1",
		"enabled": true,
	})

	users := authrepo.NewUserRepository(store)
	devices := authrepo.NewDeviceRepository(store)
	transport := &recordingTransport{}
	dedup := nrepo.NewDedupRepository(store)
	engine := nusecase.NewEngine(
		nusecase.NewTokenResolver(users, devices, 4, time.Second),
		dedup,
		nusecase.NewBatchSender(transport, devices, nusecase.SenderOptions{}),
		time.Second,
	)

	reminder := NewReminderUsecase(repository.NewKPIRepository(store), users, engine, 14, time.UTC, "https://dash.example")
	reminder.now = func() time.Time { return testNow }

	return &fixture{store: store, transport: transport, dedup: dedup, reminder: reminder}
}

func todayKey() ndomain.DedupKey {
	return ndomain.DailyKey(ndomain.KindKPIReminder, "", testNow, time.UTC)
}

func TestWeeklyReminderNotifiesAssignedEvaluator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	summary, err := f.reminder.SendWeeklyReminders(context.Background(), nusecase.Options{})
	if err != nil {
		t.Fatalf("SendWeeklyReminders() error: %v", err)
	}
	if summary.NotificationCount != 1 {
		t.Errorf("NotificationCount = %d, want 1", summary.NotificationCount)
	}
	if summary.PendingEvaluationsCount != 1 {
		t.Errorf("PendingEvaluationsCount = %d, want 1", summary.PendingEvaluationsCount)
	}
	if len(f.transport.msgs) != 1 || f.transport.msgs[0].Token != "t1" {
		t.Fatalf("sent = %+v, want one message to t1", f.transport.msgs)
	}
	body := f.transport.msgs[0].Body
	if !strings.Contains(body, "1 mentor(s)") || !strings.Contains(body, "1 forms") {
		t.Errorf("body = %q, want mentor and form counts", body)
	}
	if f.transport.msgs[0].Data["type"] != string(ndomain.KindKPIReminder) {
		t.Errorf("type = %q", f.transport.msgs[0].Data["type"])
	}
}

func TestWeeklyReminderDeduped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.dedup.RecordSent(ctx, "e1", todayKey(), testNow.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	summary, err := f.reminder.SendWeeklyReminders(ctx, nusecase.Options{})
	if err != nil {
		t.Fatalf("SendWeeklyReminders() error: %v", err)
	}
	if summary.NotificationCount != 0 {
		t.Errorf("NotificationCount = %d, want 0", summary.NotificationCount)
	}
	if len(summary.EvaluatorsSummary) != 1 {
		t.Fatalf("EvaluatorsSummary = %+v", summary.EvaluatorsSummary)
	}
	got := summary.EvaluatorsSummary[0]
	if got.SkipReason == nil || *got.SkipReason != nusecase.SkipDeduped {
		t.Errorf("skip reason = %v, want %q", got.SkipReason, nusecase.SkipDeduped)
	}
	if len(f.transport.msgs) != 0 {
		t.Errorf("sent %d messages, want 0", len(f.transport.msgs))
	}
}

func TestWeeklyReminderForceResends(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.dedup.RecordSent(ctx, "e1", todayKey(), testNow.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	before := len(f.store.Writes())

	summary, err := f.reminder.SendWeeklyReminders(ctx, nusecase.Options{Force: true})
	if err != nil {
		t.Fatalf("SendWeeklyReminders() error: %v", err)
	}
	if summary.NotificationCount != 1 {
		t.Errorf("NotificationCount = %d, want 1", summary.NotificationCount)
	}

	if writes := f.store.Writes()[before:]; len(writes) != 0 {
		t.Errorf("writes after forced run = %+v, want the existing record kept", writes)
	}
	doc, err := f.store.Get(ctx, nrepo.DedupCollection, todayKey().RecordID("e1"))
	if err != nil || doc == nil {
		t.Fatalf("dedup record missing: %v", err)
	}
	if got, ok := doc.Data["sentAt"].(time.Time); !ok || !got.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("sentAt = %v, want the first send time", doc.Data["sentAt"])
	}
}

func TestWeeklyReminderDryRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	summary, err := f.reminder.SendWeeklyReminders(context.Background(), nusecase.Options{DryRun: true})
	if err != nil {
		t.Fatalf("SendWeeklyReminders() error: %v", err)
	}
	if summary.NotificationCount != 1 || !summary.DryRun {
		t.Errorf("summary = %+v, want one would-be notification", summary)
	}
	if got := summary.EvaluatorsSummary[0]; got.EvaluatorID != "e1" || got.TokenCount != 1 || got.SkipReason != nil {
		t.Errorf("evaluator summary = %+v", got)
	}
	if len(f.transport.msgs) != 0 || len(f.store.Writes()) != 0 {
		t.Error("dry run sent or recorded")
	}
}

func TestWeeklyReminderRecentSubmission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.store.Put(repository.SubmissionsCollection, "s1", map[string]interface{}{
		"mentorId":  "m1",
		"formId":    "f1",
		"formName":  "f1",
		"createdAt": testNow.AddDate(0, 0, -3),
	})
	f.store.Put(repository.SubmissionsCollection, "s-old", map[string]interface{}{
		"mentorId":  "m1",
		"formId":    "f1",
		"formName":  "f1",
		"createdAt": testNow.AddDate(0, 0, -30),
	})

	summary, err := f.reminder.SendWeeklyReminders(context.Background(), nusecase.Options{})
	if err != nil {
		t.Fatalf("SendWeeklyReminders() error: %v", err)
	}
	if summary.PendingEvaluationsCount != 0 || summary.NotificationCount != 0 {
		t.Errorf("summary = %+v, want nothing pending", summary)
	}
}

func TestWeeklyReminderFallbackEvaluator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// e1 loses its only device, a quality user covering every center stands in
	f.store.Put(docstore.SubPath(authrepo.UsersCollection, "e1", authrepo.DevicesSubcollection), "t1", map[string]interface{}{
		"token":   "t1",
		"enabled": false,
	})
	f.store.Put(authrepo.UsersCollection, "q1", map[string]interface{}{"role": "quality", "fcmToken": "tq"})

	summary, err := f.reminder.SendWeeklyReminders(context.Background(), nusecase.Options{})
	if err != nil {
		t.Fatalf("SendWeeklyReminders() error: %v", err)
	}
	if len(summary.EvaluatorsSummary) != 1 || summary.EvaluatorsSummary[0].EvaluatorID != "q1" {
		t.Errorf("EvaluatorsSummary = %+v, want q1", summary.EvaluatorsSummary)
	}
	if len(f.transport.msgs) != 1 || f.transport.msgs[0].Token != "tq" {
		t.Errorf("sent = %+v, want tq", f.transport.msgs)
	}
}
