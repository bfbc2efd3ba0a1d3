package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	authrepo "mentorhub-backend/internal/auth/repository"
	"mentorhub-backend/internal/notification/domain"
	"mentorhub-backend/pkg/fcm"

	"golang.org/x/sync/errgroup"
)

// ErrNotDispatched marks a message that never reached the transport, either
// because the run was cancelled or because its whole batch call failed.
var ErrNotDispatched = errors.New("message not dispatched")

// Transport is the push delivery service. Results are positional.
type Transport interface {
	SendEach(ctx context.Context, msgs []fcm.Message) ([]fcm.SendResult, error)
}

// SenderOptions tunes batching. Zero values pick the defaults.
type SenderOptions struct {
	BatchSize          int           // default fcm.MaxBatchSize
	Concurrency        int           // concurrent batch calls, default 1 (sequential)
	SendTimeout        time.Duration // per batch call
	CleanupConcurrency int           // concurrent token cleanups, default 8
	CleanupTimeout     time.Duration // per cleanup write
}

// BatchSender fans messages out in bounded batches and cleans up tokens the
// transport rejects permanently.
type BatchSender struct {
	transport Transport
	devices   authrepo.DeviceRepository
	opts      SenderOptions
}

func NewBatchSender(transport Transport, devices authrepo.DeviceRepository, opts SenderOptions) *BatchSender {
	if opts.BatchSize <= 0 || opts.BatchSize > fcm.MaxBatchSize {
		opts.BatchSize = fcm.MaxBatchSize
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.CleanupConcurrency < 1 {
		opts.CleanupConcurrency = 8
	}
	return &BatchSender{transport: transport, devices: devices, opts: opts}
}

// SendBatch sends every message and returns one result per message, at the
// same index. Permanent token failures are cleaned up before it returns.
func (s *BatchSender) SendBatch(ctx context.Context, out []domain.Outgoing) []domain.Result {
	results := make([]domain.Result, len(out))
	for i := range results {
		results[i] = domain.Result{Err: ErrNotDispatched}
	}
	if len(out) == 0 {
		return results
	}

	type chunk struct{ start, end int }
	var chunks []chunk
	for start := 0; start < len(out); start += s.opts.BatchSize {
		chunks = append(chunks, chunk{start, min(start+s.opts.BatchSize, len(out))})
	}

	if s.opts.Concurrency == 1 {
		for _, c := range chunks {
			if ctx.Err() != nil {
				log.Printf("[Dispatch] Run cancelled, %d messages left unsent", len(out)-c.start)
				break
			}
			s.sendChunk(ctx, out[c.start:c.end], results[c.start:c.end])
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(s.opts.Concurrency)
		for _, c := range chunks {
			c := c
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				// each chunk owns a disjoint window of results
				s.sendChunk(ctx, out[c.start:c.end], results[c.start:c.end])
				return nil
			})
		}
		_ = g.Wait()
	}

	s.cleanup(ctx, out, results)
	return results
}

func (s *BatchSender) sendChunk(ctx context.Context, out []domain.Outgoing, results []domain.Result) {
	sendCtx := ctx
	if s.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.opts.SendTimeout)
		defer cancel()
	}

	msgs := make([]fcm.Message, len(out))
	for i, o := range out {
		msgs[i] = toFCMMessage(o)
	}

	sent, err := s.transport.SendEach(sendCtx, msgs)
	if err != nil {
		log.Printf("[Dispatch] Batch of %d failed: %v", len(msgs), err)
		for i := range results {
			results[i] = domain.Result{Err: fmt.Errorf("%w: %v", ErrNotDispatched, err)}
		}
		return
	}
	if len(sent) != len(msgs) {
		log.Printf("[Dispatch] Transport returned %d results for %d messages", len(sent), len(msgs))
	}

	for i := range results {
		if i >= len(sent) {
			break
		}
		r := sent[i]
		if r.Success {
			results[i] = domain.Result{Success: true, Dispatched: true}
			continue
		}
		results[i] = domain.Result{ErrorCode: r.ErrorCode, Err: r.Err, Dispatched: true}
		if !results[i].IsPermanentFailure() {
			log.Printf("[Dispatch] Transient failure for user %s token %s: %s %v",
				out[i].Target.UserID, shortToken(out[i].Target.Token), r.ErrorCode, r.Err)
		}
	}
}

// cleanup invalidates permanently rejected tokens with bounded concurrency
// and waits for every write. Failures are logged, never retried.
func (s *BatchSender) cleanup(ctx context.Context, out []domain.Outgoing, results []domain.Result) {
	if s.devices == nil {
		return
	}

	seen := make(map[domain.Target]bool)
	var dead []domain.Target
	for i, r := range results {
		if !r.IsPermanentFailure() {
			continue
		}
		t := out[i].Target
		if seen[t] {
			continue
		}
		seen[t] = true
		dead = append(dead, t)
	}
	if len(dead) == 0 {
		return
	}
	log.Printf("[Cleanup] Invalidating %d rejected tokens", len(dead))

	g := new(errgroup.Group)
	g.SetLimit(s.opts.CleanupConcurrency)
	for _, t := range dead {
		t := t
		g.Go(func() error {
			cctx := ctx
			if s.opts.CleanupTimeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, s.opts.CleanupTimeout)
				defer cancel()
			}

			if err := s.devices.InvalidateToken(cctx, t.UserID, t.Token, t.Source == domain.SourceDevice); err != nil {
				log.Printf("[Cleanup] Failed to invalidate token %s of user %s: %v", shortToken(t.Token), t.UserID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func toFCMMessage(o domain.Outgoing) fcm.Message {
	data := make(map[string]string, len(o.Message.Data)+2)
	for k, v := range o.Message.Data {
		data[k] = v
	}
	data["type"] = string(o.Message.Kind)
	if o.Message.Link != "" {
		data["click_action"] = o.Message.Link
	}
	return fcm.Message{
		Token:        o.Target.Token,
		Title:        o.Message.Title,
		Body:         o.Message.Body,
		Data:         data,
		Link:         o.Message.Link,
		HighPriority: o.Message.Priority == domain.PriorityHigh,
	}
}

func shortToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
