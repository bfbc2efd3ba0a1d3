package main

import (
	"context"
	"fmt"
	"log"
	"time"

	authRepo "mentorhub-backend/internal/auth/repository"
	authUsecase "mentorhub-backend/internal/auth/usecase"
	eventRepo "mentorhub-backend/internal/event/repository"
	eventUsecase "mentorhub-backend/internal/event/usecase"
	kpiRepo "mentorhub-backend/internal/kpi/repository"
	kpiUsecase "mentorhub-backend/internal/kpi/usecase"
	"mentorhub-backend/internal/listener"
	notifRepo "mentorhub-backend/internal/notification/repository"
	notifUsecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/internal/scheduler"
	"mentorhub-backend/pkg/config"
	"mentorhub-backend/pkg/database"
	"mentorhub-backend/pkg/docstore"
	"mentorhub-backend/pkg/fcm"
)

// defaultSchedules are used unless SCHEDULE_FILE overrides them
var defaultSchedules = map[string]config.TriggerSchedule{
	kpiUsecase.TriggerName:              {Spec: "0 9 * * MON", Enabled: true},
	eventUsecase.TriggerOwnerReminder:   {Spec: "0 18 * * *", Enabled: true},
	eventUsecase.TriggerSameDayReminder: {Spec: "0 8 * * *", Enabled: true},
	eventUsecase.TriggerOverdueReminder: {Spec: "0 10 * * MON", Enabled: true},
	eventUsecase.TriggerCalendarDigest:  {Spec: "0 7 * * *", Enabled: true},
}

var triggerDescriptions = map[string]string{
	kpiUsecase.TriggerName:              "Remind evaluators about mentors without a recent KPI submission",
	eventUsecase.TriggerOwnerReminder:   "Remind creators and assignees of events starting tomorrow",
	eventUsecase.TriggerSameDayReminder: "Remind owners and Quality users of events later today",
	eventUsecase.TriggerOverdueReminder: "Remind assignees of open events past their start time",
	eventUsecase.TriggerCalendarDigest:  "Broadcast today's agenda to every user",
}

// app holds the wired dependencies shared by every command
type app struct {
	cfg       *config.Config
	auth      authUsecase.AuthUsecase
	scheduler *scheduler.Scheduler
	processor *listener.Processor
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	firebaseApp, err := fcm.NewApp(ctx, cfg.GoogleProjectID, cfg.FirebaseCredentials)
	if err != nil {
		return nil, err
	}
	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore client: %w", err)
	}
	store := docstore.NewFirestore(firestoreClient)
	a.closers = append(a.closers, store.Close)

	fcmClient, err := fcm.NewClient(ctx, firebaseApp, cfg.FCMRateLimit)
	if err != nil {
		a.Close()
		return nil, err
	}

	dedup, err := a.newDedupRepository(store)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(store)
	deviceRepository := authRepo.NewDeviceRepository(store)
	events := eventRepo.NewEventRepository(store)
	kpis := kpiRepo.NewKPIRepository(store)

	concurrency := cfg.SendConcurrency
	if fcmClient.RateLimited() {
		// a global rate limit serializes calls anyway
		concurrency = 1
	}
	engine := notifUsecase.NewEngine(
		notifUsecase.NewTokenResolver(userRepository, deviceRepository, cfg.LookupConcurrency, cfg.ReadTimeout),
		dedup,
		notifUsecase.NewBatchSender(fcmClient, deviceRepository, notifUsecase.SenderOptions{
			Concurrency:    concurrency,
			SendTimeout:    cfg.SendTimeout,
			CleanupTimeout: cfg.ReadTimeout,
		}),
		cfg.ReadTimeout,
	)

	loc := cfg.Location()
	kpiReminder := kpiUsecase.NewReminderUsecase(kpis, userRepository, engine, cfg.KPILookbackDays, loc, cfg.AppBaseURL)
	eventUc := eventUsecase.NewEventUsecase(events, userRepository, engine, loc, cfg.AppBaseURL)

	a.auth = authUsecase.NewAuthUsecase(userRepository, cfg.JWTSecret, 24*time.Hour)
	a.processor = listener.NewProcessor(eventUc, cfg.RunTimeout)

	schedules, err := config.LoadSchedules(cfg.ScheduleFile, defaultSchedules, cfg.Timezone)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.scheduler = scheduler.NewScheduler(cfg.RunTimeout)
	jobs := map[string]scheduler.JobFunc{
		kpiUsecase.TriggerName: func(ctx context.Context, opts notifUsecase.Options) (scheduler.Summary, error) {
			return summaryOf(kpiReminder.SendWeeklyReminders(ctx, opts))
		},
		eventUsecase.TriggerOwnerReminder: func(ctx context.Context, opts notifUsecase.Options) (scheduler.Summary, error) {
			return summaryOf(eventUc.SendOwnerReminders(ctx, opts))
		},
		eventUsecase.TriggerSameDayReminder: func(ctx context.Context, opts notifUsecase.Options) (scheduler.Summary, error) {
			return summaryOf(eventUc.SendSameDayReminders(ctx, opts))
		},
		eventUsecase.TriggerOverdueReminder: func(ctx context.Context, opts notifUsecase.Options) (scheduler.Summary, error) {
			return summaryOf(eventUc.SendOverdueReminders(ctx, opts))
		},
		eventUsecase.TriggerCalendarDigest: func(ctx context.Context, opts notifUsecase.Options) (scheduler.Summary, error) {
			return summaryOf(eventUc.SendCalendarDigest(ctx, opts))
		},
	}
	for name, job := range jobs {
		err := a.scheduler.Register(scheduler.Trigger{
			Name:        name,
			Description: triggerDescriptions[name],
			Schedule:    schedules[name],
			Run:         job,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) newDedupRepository(store docstore.Store) (notifRepo.DedupRepository, error) {
	if a.cfg.DedupBackend != config.DedupBackendPostgres {
		return notifRepo.NewDedupRepository(store), nil
	}
	db, err := database.NewPostgresConnection(a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	log.Println("[Dedup] Using Postgres dedup store")
	return notifRepo.NewGormDedupRepository(db)
}

// summaryOf keeps a nil summary from becoming a non-nil interface
func summaryOf[S scheduler.Summary](s S, err error) (scheduler.Summary, error) {
	var zero S
	if any(s) == any(zero) {
		return nil, err
	}
	return s, err
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
}
