package usecase

import (
	"context"
	"log"
	"time"

	"mentorhub-backend/internal/notification/domain"
	"mentorhub-backend/internal/notification/repository"
)

// Skip reasons reported per recipient.
const (
	SkipDeduped       = "deduped"
	SkipNoTokens      = "no_tokens"
	SkipDedupCheck    = "dedup_check_failed"
	SkipNotDispatched = "not_dispatched"
)

// Delivery is one consolidated notification for one recipient.
type Delivery struct {
	RecipientID string
	Message     domain.Message
	// DedupKey gates and records the delivery. Nil disables dedup.
	DedupKey *domain.DedupKey
	// Targets, when non-nil, are used instead of resolving the recipient.
	Targets []domain.Target
}

// Options are the caller's switches for one dispatch.
type Options struct {
	Force  bool // bypass the dedup check, still record
	DryRun bool // resolve and filter only
}

// Outcome summarizes what happened to one delivery.
type Outcome struct {
	RecipientID string
	Kind        domain.Kind
	TokenCount  int
	SkipReason  string
	Sent        int
	Failed      int
}

// Report summarizes one dispatch.
type Report struct {
	Outcomes []Outcome
	// NotificationCount counts deliveries that reached the transport, or
	// would have in a dry run.
	NotificationCount int
	MessagesSent      int
	MessagesFailed    int
}

// Engine runs the resolve, dedup, send, record pipeline.
type Engine struct {
	resolver    *TokenResolver
	dedup       repository.DedupRepository
	sender      *BatchSender
	readTimeout time.Duration
	now         func() time.Time
}

func NewEngine(resolver *TokenResolver, dedup repository.DedupRepository, sender *BatchSender, readTimeout time.Duration) *Engine {
	return &Engine{
		resolver:    resolver,
		dedup:       dedup,
		sender:      sender,
		readTimeout: readTimeout,
		now:         time.Now,
	}
}

// Resolver exposes the token resolver for routing steps that need tokens
// before building deliveries.
func (e *Engine) Resolver() *TokenResolver {
	return e.resolver
}

// Dispatch delivers each delivery to every token of its recipient. Dedup
// records are written only for deliveries with at least one dispatched
// message. A cancelled context stops sending and is returned as the error.
func (e *Engine) Dispatch(ctx context.Context, deliveries []Delivery, opts Options) (*Report, error) {
	var unresolved []string
	pendingIDs := make(map[string]bool)
	for _, d := range deliveries {
		if d.Targets == nil && !pendingIDs[d.RecipientID] {
			pendingIDs[d.RecipientID] = true
			unresolved = append(unresolved, d.RecipientID)
		}
	}
	resolved := e.resolver.ResolveMany(ctx, unresolved)

	report := &Report{Outcomes: make([]Outcome, len(deliveries))}
	type span struct{ delivery, start, end int }
	var (
		outgoing []domain.Outgoing
		spans    []span
	)

	for i, d := range deliveries {
		targets := d.Targets
		if targets == nil {
			targets = resolved[d.RecipientID]
		}
		oc := &report.Outcomes[i]
		oc.RecipientID = d.RecipientID
		oc.Kind = d.Message.Kind
		oc.TokenCount = len(targets)

		if len(targets) == 0 {
			oc.SkipReason = SkipNoTokens
			continue
		}
		if d.DedupKey != nil {
			ok, err := e.shouldSend(ctx, d.RecipientID, *d.DedupKey, opts.Force)
			if err != nil {
				log.Printf("[Dispatch] Dedup check failed for %s %s: %v", d.RecipientID, d.DedupKey, err)
				oc.SkipReason = SkipDedupCheck
				continue
			}
			if !ok {
				oc.SkipReason = SkipDeduped
				continue
			}
		}

		if opts.DryRun {
			report.NotificationCount++
			continue
		}
		start := len(outgoing)
		for _, t := range targets {
			outgoing = append(outgoing, domain.Outgoing{Target: t, Message: d.Message})
		}
		spans = append(spans, span{delivery: i, start: start, end: len(outgoing)})
	}

	if opts.DryRun || len(outgoing) == 0 {
		return report, ctx.Err()
	}

	results := e.sender.SendBatch(ctx, outgoing)
	sentAt := e.now()

	for _, sp := range spans {
		d := deliveries[sp.delivery]
		oc := &report.Outcomes[sp.delivery]
		dispatched := false
		for _, r := range results[sp.start:sp.end] {
			if !r.Dispatched {
				continue
			}
			dispatched = true
			if r.Success {
				oc.Sent++
			} else {
				oc.Failed++
			}
		}
		report.MessagesSent += oc.Sent
		report.MessagesFailed += oc.Failed

		if !dispatched {
			oc.SkipReason = SkipNotDispatched
			continue
		}
		report.NotificationCount++

		if d.DedupKey != nil {
			if err := e.recordSent(ctx, d.RecipientID, *d.DedupKey, sentAt); err != nil {
				log.Printf("[Dispatch] Failed to record %s for %s: %v", d.DedupKey, d.RecipientID, err)
			}
		}
	}

	return report, ctx.Err()
}

// Broadcast sends msg once to every distinct token of every user. No dedup.
func (e *Engine) Broadcast(ctx context.Context, msg domain.Message, opts Options) (*Report, error) {
	targets, err := e.resolver.ResolveAllTokens(ctx)
	if err != nil {
		return nil, err
	}

	var deliveries []Delivery
	index := make(map[string]int)
	for _, t := range targets {
		i, ok := index[t.UserID]
		if !ok {
			i = len(deliveries)
			index[t.UserID] = i
			deliveries = append(deliveries, Delivery{RecipientID: t.UserID, Message: msg, Targets: []domain.Target{}})
		}
		deliveries[i].Targets = append(deliveries[i].Targets, t)
	}
	return e.Dispatch(ctx, deliveries, opts)
}

func (e *Engine) shouldSend(ctx context.Context, recipientID string, key domain.DedupKey, force bool) (bool, error) {
	if e.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.readTimeout)
		defer cancel()
	}
	return e.dedup.ShouldSend(ctx, recipientID, key, force)
}

// recordSent outlives run cancellation: the message already went out, so its
// record must still land. Each write gets its own readTimeout.
func (e *Engine) recordSent(ctx context.Context, recipientID string, key domain.DedupKey, sentAt time.Time) error {
	ctx = context.WithoutCancel(ctx)
	if e.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.readTimeout)
		defer cancel()
	}
	return e.dedup.RecordSent(ctx, recipientID, key, sentAt)
}
