package usecase

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	authdomain "mentorhub-backend/internal/auth/domain"
	authrepo "mentorhub-backend/internal/auth/repository"
	"mentorhub-backend/internal/kpi/repository"
	ndomain "mentorhub-backend/internal/notification/domain"
	"mentorhub-backend/internal/notification/routing"
	nusecase "mentorhub-backend/internal/notification/usecase"
)

// TriggerName identifies the weekly reminder in schedules and operator calls
const TriggerName = "kpi_weekly_reminder"

// EvaluatorSummary is one evaluator's line in the reminder summary
type EvaluatorSummary struct {
	EvaluatorID string  `json:"evaluatorId"`
	TokenCount  int     `json:"tokenCount"`
	SkipReason  *string `json:"skipReason"`
	MentorCount int     `json:"mentorCount"`
	FormCount   int     `json:"formCount"`
}

// Summary is the result of one weekly KPI reminder run
type Summary struct {
	DryRun                  bool               `json:"dryRun"`
	NotificationCount       int                `json:"notificationCount"`
	EvaluatorsSummary       []EvaluatorSummary `json:"evaluatorsSummary"`
	PendingEvaluationsCount int                `json:"pendingEvaluationsCount"`
	DroppedCount            int                `json:"droppedCount"`
}

func (s *Summary) Notifications() int {
	if s == nil {
		return 0
	}
	return s.NotificationCount
}

// ReminderUsecase reminds evaluators about mentors with missing KPI submissions
type ReminderUsecase struct {
	kpiRepo  repository.KPIRepository
	users    authrepo.UserRepository
	engine   *nusecase.Engine
	lookback int
	loc      *time.Location
	baseURL  string
	now      func() time.Time
}

// NewReminderUsecase creates the weekly reminder. lookbackDays is how far back
// a submission still counts as recent.
func NewReminderUsecase(
	kpiRepo repository.KPIRepository,
	users authrepo.UserRepository,
	engine *nusecase.Engine,
	lookbackDays int,
	loc *time.Location,
	baseURL string,
) *ReminderUsecase {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderUsecase{
		kpiRepo:  kpiRepo,
		users:    users,
		engine:   engine,
		lookback: lookbackDays,
		loc:      loc,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// SendWeeklyReminders routes every pending evaluation to one evaluator and
// sends each evaluator a single consolidated reminder per day.
func (u *ReminderUsecase) SendWeeklyReminders(ctx context.Context, opts nusecase.Options) (*Summary, error) {
	now := u.now()

	mentors, err := u.kpiRepo.ListMentors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mentors: %w", err)
	}
	formNames, err := u.kpiRepo.FormNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	since := now.AddDate(0, 0, -u.lookback)
	recent, err := u.kpiRepo.RecentSubmissionKeys(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	candidates, err := u.users.ListByRoles(ctx, authdomain.RoleAdmin, authdomain.RoleQuality, authdomain.RoleEvaluator)
	if err != nil {
		return nil, fmt.Errorf("list evaluators: %w", err)
	}

	// Tokens are needed before routing since reachability decides the target
	ids := make([]string, 0, len(mentors)+len(candidates))
	for _, m := range mentors {
		if id := m.EvaluatorID(); id != "" {
			ids = append(ids, id)
		}
	}
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	targets := u.engine.Resolver().ResolveMany(ctx, dedupIDs(ids))
	tokenCounts := make(map[string]int, len(targets))
	for id, t := range targets {
		tokenCounts[id] = len(t)
	}

	route := routing.RoutePendingEvaluations(routing.KPIInput{
		Mentors:           mentors,
		FormNames:         formNames,
		RecentSubmissions: recent,
		TokenCounts:       tokenCounts,
		Candidates:        candidates,
	})
	for _, d := range route.Dropped {
		log.Printf("[KPI] Dropping %s / %s: %s", d.Item.MentorID, d.Item.FormName, d.Reason)
	}

	key := ndomain.DailyKey(ndomain.KindKPIReminder, "", now, u.loc)
	deliveries := make([]nusecase.Delivery, 0, len(route.Evaluators))
	for _, id := range route.Evaluators {
		items := route.ByEvaluator[id]
		deliveries = append(deliveries, nusecase.Delivery{
			RecipientID: id,
			Message:     u.buildMessage(routing.MentorCount(items), len(items)),
			DedupKey:    &key,
			Targets:     targets[id],
		})
	}

	report, err := u.engine.Dispatch(ctx, deliveries, opts)
	if report == nil {
		return nil, err
	}

	summary := &Summary{
		DryRun:                  opts.DryRun,
		NotificationCount:       report.NotificationCount,
		EvaluatorsSummary:       make([]EvaluatorSummary, 0, len(report.Outcomes)),
		PendingEvaluationsCount: route.PendingCount,
		DroppedCount:            len(route.Dropped),
	}
	for _, oc := range report.Outcomes {
		items := route.ByEvaluator[oc.RecipientID]
		summary.EvaluatorsSummary = append(summary.EvaluatorsSummary, EvaluatorSummary{
			EvaluatorID: oc.RecipientID,
			TokenCount:  oc.TokenCount,
			SkipReason:  nusecase.SkipReasonPtr(oc.SkipReason),
			MentorCount: routing.MentorCount(items),
			FormCount:   len(items),
		})
	}

	log.Printf("[KPI] %d pending evaluations, %d evaluators, %d notifications (dryRun=%v force=%v)",
		route.PendingCount, len(deliveries), summary.NotificationCount, opts.DryRun, opts.Force)
	return summary, err
}

func (u *ReminderUsecase) buildMessage(mentorCount, formCount int) ndomain.Message {
	return ndomain.Message{
		Kind:  ndomain.KindKPIReminder,
		Title: "KPI evaluations pending",
		Body:  fmt.Sprintf("You have %d mentor(s) with %d forms awaiting evaluation.", mentorCount, formCount),
		Data: map[string]string{
			"mentorCount": strconv.Itoa(mentorCount),
			"formCount":   strconv.Itoa(formCount),
		},
		Link:     u.baseURL + "/kpi/evaluations",
		Priority: ndomain.PriorityNormal,
	}
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
