// Package stream publishes escrow transition events onto a Redis stream
// for off-chain consumers: the contact-disclosure service watching
// task_accepted/task_completed and the cross-chain reward service
// reading reward attachments. Publishing is asynchronous and fail-open:
// the engine is never blocked, and events are dropped (and counted)
// when the buffer is full.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slyt3/Covenant/internal/assert"
	"github.com/slyt3/Covenant/internal/escrow"
	"github.com/slyt3/Covenant/internal/logging"
)

// DefaultStreamKey is the Redis stream transition events land on.
const DefaultStreamKey = "covenant:events"

const (
	maxBufferSize  = 1 << 16
	maxDrainEvents = 1 << 20
)

// Publisher is an escrow.Recorder forwarding events to Redis via a
// bounded ring buffer and a background goroutine.
type Publisher struct {
	rdb       *redis.Client
	streamKey string
	buf       *buffer

	signalChan chan struct{}
	quitChan   chan struct{}
	wg         sync.WaitGroup
	closing    atomic.Bool
	closeOnce  sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a publisher connected to the Redis instance at addr and
// starts its background loop. Use bufferSize = 1024 for typical
// workloads.
func New(addr, streamKey string, bufferSize int) (*Publisher, error) {
	if err := assert.Check(addr != "", "redis address must not be empty"); err != nil {
		return nil, err
	}
	if err := assert.Check(streamKey != "", "stream key must not be empty"); err != nil {
		return nil, err
	}
	if err := assert.InRange(bufferSize, 1, maxBufferSize, "buffer size"); err != nil {
		return nil, err
	}

	p := &Publisher{
		rdb:        redis.NewClient(&redis.Options{Addr: addr}),
		streamKey:  streamKey,
		buf:        newBuffer(bufferSize),
		signalChan: make(chan struct{}, 1),
		quitChan:   make(chan struct{}),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run()
	}()
	return p, nil
}

// Record implements escrow.Recorder. Non-blocking: a full buffer drops
// the event and increments the drop counter.
func (p *Publisher) Record(ev escrow.Event) error {
	if p.closing.Load() {
		p.dropped.Add(1)
		logging.Log.Warn().Str("event_id", ev.ID).Msg("event dropped during shutdown")
		return nil
	}
	if err := p.buf.push(ev); err != nil {
		p.dropped.Add(1)
		logging.Log.Warn().Str("event_id", ev.ID).Uint64("task_id", ev.TaskID).Msg("event dropped, buffer full")
		return nil
	}

	select {
	case p.signalChan <- struct{}{}:
	default:
		// already signaled
	}
	return nil
}

// Stats returns publish and drop counters.
func (p *Publisher) Stats() (published, dropped uint64) {
	return p.published.Load(), p.dropped.Load()
}

// QueueDepth returns the number of buffered, unpublished events.
func (p *Publisher) QueueDepth() int {
	return p.buf.len()
}

// Close drains buffered events, stops the background loop, and closes
// the Redis connection.
func (p *Publisher) Close() error {
	p.closing.Store(true)
	p.closeOnce.Do(func() {
		close(p.quitChan)
	})
	p.wg.Wait()
	p.drain()
	return p.rdb.Close()
}

func (p *Publisher) run() {
	for {
		select {
		case <-p.signalChan:
			p.drain()
		case <-p.quitChan:
			return
		}
	}
}

func (p *Publisher) drain() {
	for i := 0; i < maxDrainEvents; i++ {
		ev, ok := p.buf.pop()
		if !ok {
			return
		}
		if err := p.publish(ev); err != nil {
			p.dropped.Add(1)
			logging.Log.Error().Err(err).Str("event_id", ev.ID).Msg("publishing event failed")
			continue
		}
		p.published.Add(1)
	}
}

func (p *Publisher) publish(ev escrow.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		Values: map[string]interface{}{
			"event_id": ev.ID,
			"type":     string(ev.Type),
			"task_id":  ev.TaskID,
			"actor":    ev.Actor,
			"payload":  string(payload),
		},
	}).Err()
}
