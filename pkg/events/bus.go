// Package events delivers version lifecycle notifications to in-process
// subscribers, such as the conversion pipeline or an audit log.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
)

// VersionCreated is published after a finalize commits.
type VersionCreated struct {
	RepositoryID string    `json:"repositoryId"`
	FileID       string    `json:"fileId"`
	Path         string    `json:"path"`
	VersionID    string    `json:"versionId"`
	Sequence     uint64    `json:"sequence"`
	Fingerprint  string    `json:"fingerprint"`
	AuthorID     string    `json:"authorId"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Handler consumes events. Handlers run on the subscriber's own goroutine,
// one event at a time.
type Handler func(ctx context.Context, event VersionCreated)

// Publisher is the publishing side of a Bus.
type Publisher interface {
	Publish(event VersionCreated)
}

// DefaultQueueSize is the per-subscriber buffer when none is configured.
const DefaultQueueSize = 256

// Bus fans events out to subscribers.
//
// Each subscriber owns a buffered queue drained by a dedicated worker, so a
// slow subscriber never delays the publisher or other subscribers. When a
// queue is full the event is dropped for that subscriber and a warning is
// logged.
type Bus struct {
	queueSize int

	mu          sync.RWMutex
	subscribers []*subscriber
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscriber struct {
	name    string
	queue   chan VersionCreated
	handler Handler
	dropped atomic.Uint64
}

// NewBus creates a Bus. queueSize <= 0 selects DefaultQueueSize.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{queueSize: queueSize, ctx: ctx, cancel: cancel}
}

// Subscribe registers handler under name and starts its worker.
// Subscribing to a closed bus is a no-op.
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	sub := &subscriber{
		name:    name,
		queue:   make(chan VersionCreated, b.queueSize),
		handler: handler,
	}
	b.subscribers = append(b.subscribers, sub)

	b.wg.Add(1)
	go b.run(sub)
}

func (b *Bus) run(sub *subscriber) {
	defer b.wg.Done()
	for event := range sub.queue {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *subscriber, event VersionCreated) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event subscriber %s panicked on version %s: %v", sub.name, event.VersionID, r)
		}
	}()
	sub.handler(b.ctx, event)
}

// Publish enqueues event for every subscriber without blocking.
func (b *Bus) Publish(event VersionCreated) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		select {
		case sub.queue <- event:
		default:
			dropped := sub.dropped.Add(1)
			logger.Warn("Event queue of %s is full, dropped version %s (%d dropped so far)",
				sub.name, event.VersionID, dropped)
		}
	}
}

// Close stops accepting events and waits until every queued event has been
// handled or ctx is done. Handlers see their context cancelled only when
// ctx expires first.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.queue)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	}
}

// LogSubscriber returns a handler that logs every event.
func LogSubscriber() Handler {
	return func(_ context.Context, e VersionCreated) {
		logger.WithFields(logger.Fields{
			"repository_id": e.RepositoryID,
			"file_id":       e.FileID,
			"version_id":    e.VersionID,
			"sequence":      e.Sequence,
			"author_id":     e.AuthorID,
			"size":          e.Size,
		}).Infof("Version created: %s", e.Path)
	}
}
