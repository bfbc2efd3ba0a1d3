package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	nusecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/pkg/config"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrUnknownTrigger = errors.New("unknown trigger")
	ErrAlreadyRunning = errors.New("trigger is already running")
)

// Summary is what a run reports back to operators
type Summary interface {
	Notifications() int
}

// JobFunc runs one trigger invocation
type JobFunc func(ctx context.Context, opts nusecase.Options) (Summary, error)

// Trigger is a named time-based job
type Trigger struct {
	Name        string
	Description string
	Schedule    config.TriggerSchedule
	Run         JobFunc
}

// TriggerInfo describes a registered trigger for listings
type TriggerInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	Timezone    string     `json:"timezone"`
	Enabled     bool       `json:"enabled"`
	Running     bool       `json:"running"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
}

// Scheduler runs registered triggers on their cron schedules and on demand.
// A trigger never overlaps with itself; different triggers run independently.
type Scheduler struct {
	cron       *cron.Cron
	runTimeout time.Duration

	mu       sync.Mutex
	triggers map[string]*Trigger
	entries  map[string]cron.EntryID
	running  map[string]bool

	// base is cancelled on shutdown so in-flight runs stop cooperatively
	base   context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. runTimeout bounds every run; zero means
// no bound beyond shutdown.
func NewScheduler(runTimeout time.Duration) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runTimeout: runTimeout,
		triggers:   make(map[string]*Trigger),
		entries:    make(map[string]cron.EntryID),
		running:    make(map[string]bool),
		base:       base,
		cancel:     cancel,
	}
}

// Register adds a trigger. Disabled triggers can still be run on demand.
func (s *Scheduler) Register(t Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.triggers[t.Name]; ok {
		return fmt.Errorf("trigger %q registered twice", t.Name)
	}
	s.triggers[t.Name] = &t
	if !t.Schedule.Enabled || t.Schedule.Spec == "" {
		log.Printf("[Scheduler] Trigger %s registered without schedule", t.Name)
		return nil
	}

	name := t.Name
	id, err := s.cron.AddFunc(cronSpec(t.Schedule), func() {
		if _, _, err := s.Run(s.base, name, nusecase.Options{}); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			log.Printf("[Scheduler] Trigger %s failed: %v", name, err)
		}
	})
	if err != nil {
		delete(s.triggers, t.Name)
		return fmt.Errorf("trigger %q: invalid schedule %q: %w", t.Name, t.Schedule.Spec, err)
	}
	s.entries[t.Name] = id
	log.Printf("[Scheduler] Trigger %s scheduled at %q (%s)", t.Name, t.Schedule.Spec, t.Schedule.Timezone)
	return nil
}

// Start begins firing scheduled triggers
func (s *Scheduler) Start() {
	log.Printf("[Scheduler] Starting with %d scheduled triggers", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops firing triggers and waits for running ones until ctx is done,
// after which they are cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Println("[Scheduler] Shutdown deadline reached, cancelling running triggers")
	}
	s.cancel()
	log.Println("[Scheduler] Scheduler stopped")
}

// Run executes a trigger now. It returns the run id with the summary.
func (s *Scheduler) Run(ctx context.Context, name string, opts nusecase.Options) (Summary, string, error) {
	s.mu.Lock()
	t, ok := s.triggers[name]
	if !ok {
		s.mu.Unlock()
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
	}
	if s.running[name] {
		s.mu.Unlock()
		log.Printf("[Scheduler] Trigger %s still running, skipping", name)
		return nil, "", fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	// Shutdown cancels manual runs too
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-s.base.Done():
			stop()
		case <-ctx.Done():
		}
	}()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	runID := uuid.New().String()
	started := time.Now()
	log.Printf("[Scheduler] Run %s of %s started (dryRun=%v force=%v)", runID, name, opts.DryRun, opts.Force)

	summary, err := t.Run(ctx, opts)
	if err != nil {
		log.Printf("[Scheduler] Run %s of %s failed after %s: %v", runID, name, time.Since(started).Round(time.Millisecond), err)
		return summary, runID, err
	}
	count := 0
	if summary != nil {
		count = summary.Notifications()
	}
	log.Printf("[Scheduler] Run %s of %s finished in %s: %d notifications", runID, name, time.Since(started).Round(time.Millisecond), count)
	return summary, runID, nil
}

// Triggers lists every registered trigger by name
func (s *Scheduler) Triggers() []TriggerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TriggerInfo, 0, len(s.triggers))
	for name, t := range s.triggers {
		info := TriggerInfo{
			Name:        name,
			Description: t.Description,
			Schedule:    t.Schedule.Spec,
			Timezone:    t.Schedule.Timezone,
			Enabled:     t.Schedule.Enabled,
			Running:     s.running[name],
		}
		if id, ok := s.entries[name]; ok {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				info.NextRun = &next
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cronSpec(s config.TriggerSchedule) string {
	if s.Timezone == "" {
		return s.Spec
	}
	return "CRON_TZ=" + s.Timezone + " " + s.Spec
}
