// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package feedback

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/store"
)

// ErrPipelineClosed is returned by Submit after Close.
var ErrPipelineClosed = errors.New("feedback: pipeline closed")

// foldTopic returns the pub/sub topic for one fold shard. Events for a
// user always land on the same shard, so one subscriber per shard gives
// per-user serialized application without global locking.
func foldTopic(shard int) string {
	return fmt.Sprintf("feedback.fold.%d", shard)
}

// Pipeline is the append-then-fold entry point for feedback.
//
// Submit durably appends the event to the store's event log, then
// publishes it to an in-process shard topic. Shard workers fold
// published events into profiles via the store's atomic update. A crash
// between append and fold loses only the fold; the event itself is
// already durable and the append's idempotency check makes
// re-submission safe.
type Pipeline struct {
	cfg       config.FeedbackConfig
	store     store.ProfileStore
	processor *Processor
	pubsub    *gochannel.GoChannel
	logger    zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool

	// folded is signalled after every fold attempt; tests use it to
	// wait for asynchronous application.
	folded chan struct{}
}

// NewPipeline creates a Pipeline. Call Serve (typically under a
// supervisor) before submitting events.
func NewPipeline(cfg config.FeedbackConfig, st store.ProfileStore, proc *Processor, logger zerolog.Logger) *Pipeline {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, NewWatermillLogger(logger))

	return &Pipeline{
		cfg:       cfg,
		store:     st,
		processor: proc,
		pubsub:    pubsub,
		logger:    logger.With().Str("component", "feedback_pipeline").Logger(),
		folded:    make(chan struct{}, 1024),
	}
}

// Serve subscribes the shard workers and blocks until ctx is done.
// It implements suture.Service.
func (p *Pipeline) Serve(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	p.started = true
	p.mu.Unlock()

	var wg sync.WaitGroup
	for shard := 0; shard < p.cfg.WorkerCount; shard++ {
		msgs, err := p.pubsub.Subscribe(ctx, foldTopic(shard))
		if err != nil {
			return fmt.Errorf("subscribe shard %d: %w", shard, err)
		}

		wg.Add(1)
		go func(shard int, msgs <-chan *message.Message) {
			defer wg.Done()
			p.foldLoop(ctx, shard, msgs)
		}(shard, msgs)
	}

	p.logger.Info().Int("workers", p.cfg.WorkerCount).Msg("feedback pipeline started")
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Submit appends the event and schedules its fold. It returns false
// with a nil error when the event ID was already applied.
func (p *Pipeline) Submit(ctx context.Context, ev *EnrichedEvent) (bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, ErrPipelineClosed
	}
	p.mu.Unlock()

	if ev.Event.Timestamp.IsZero() {
		ev.Event.Timestamp = time.Now().UTC()
	}

	applied, err := p.store.AppendEvent(ctx, &ev.Event)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	if !applied {
		p.logger.Debug().
			Str("event_id", ev.Event.EventID).
			Str("user_id", ev.Event.UserID).
			Msg("duplicate event ignored")
		return false, nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.Event.EventID, payload)
	msg.Metadata.Set("user_id", ev.Event.UserID)

	if err := p.pubsub.Publish(foldTopic(p.shardFor(ev.Event.UserID)), msg); err != nil {
		return false, fmt.Errorf("publish event: %w", err)
	}
	return true, nil
}

// foldLoop applies messages for one shard in arrival order.
func (p *Pipeline) foldLoop(ctx context.Context, shard int, msgs <-chan *message.Message) {
	for msg := range msgs {
		p.fold(ctx, shard, msg)
	}
}

func (p *Pipeline) fold(ctx context.Context, shard int, msg *message.Message) {
	// The event is durably appended; a failed fold is logged and the
	// message acknowledged rather than redelivered forever.
	defer msg.Ack()
	defer p.signalFolded()

	start := time.Now()

	var ev EnrichedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		metrics.RecordFold(time.Since(start), err)
		p.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("undecodable fold message dropped")
		return
	}

	now := time.Now().UTC()
	_, err := p.store.AtomicUpdate(ctx, ev.Event.UserID, func(profile *model.UserProfile) error {
		return p.processor.Apply(profile, &ev, now)
	})
	metrics.RecordFold(time.Since(start), err)
	if err != nil {
		p.logger.Error().Err(err).
			Int("shard", shard).
			Str("event_id", ev.Event.EventID).
			Str("user_id", ev.Event.UserID).
			Msg("feedback fold failed")
		return
	}

	p.logger.Debug().
		Int("shard", shard).
		Str("event_id", ev.Event.EventID).
		Str("user_id", ev.Event.UserID).
		Str("type", ev.Event.Type.String()).
		Msg("feedback folded")
}

func (p *Pipeline) signalFolded() {
	select {
	case p.folded <- struct{}{}:
	default:
	}
}

// WaitFolded blocks until n fold attempts have completed or ctx is
// done. Intended for tests and draining.
func (p *Pipeline) WaitFolded(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		select {
		case <-p.folded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Pipeline) shardFor(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(p.cfg.WorkerCount))
}

// Close stops accepting submissions and shuts the pub/sub down.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pubsub.Close()
}
