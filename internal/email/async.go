package email

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrQueueFull = errors.New("email queue is full")

const sendTimeout = 15 * time.Second

// AsyncSender queues messages and delivers them from a fixed set of workers,
// so callers return before delivery. A request that sends mail and one that
// does not take the same time.
type AsyncSender struct {
	next   Sender
	logger *slog.Logger
	queue  chan Message

	onDelivery func(err error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncSender(next Sender, logger *slog.Logger, buffer int) *AsyncSender {
	return &AsyncSender{
		next:   next,
		logger: logger.With("component", "email_queue"),
		queue:  make(chan Message, buffer),
	}
}

// OnDelivery registers a callback run after each delivery attempt. Call
// before Start.
func (s *AsyncSender) OnDelivery(fn func(err error)) {
	s.onDelivery = fn
}

// Start launches workers; they drain the queue until Close.
func (s *AsyncSender) Start(workers int) {
	for range workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for m := range s.queue {
				s.deliver(m)
			}
		}()
	}
}

func (s *AsyncSender) Send(_ context.Context, m Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrQueueFull
	}

	select {
	case s.queue <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (s *AsyncSender) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *AsyncSender) deliver(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	err := s.next.Send(ctx, m)
	if err != nil {
		// the address is omitted: logs must not confirm which accounts exist
		s.logger.Error("deliver email", "kind", m.Kind, "error", err)
	}
	if s.onDelivery != nil {
		s.onDelivery(err)
	}
}
