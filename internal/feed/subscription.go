package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// messageBuffer is the buffer size of a subscription's message channel.
const messageBuffer = 64

// ErrClosedByRemote is reported when a transport returns without error while
// the subscription is still wanted.
var ErrClosedByRemote = errors.New("feed closed by remote")

// Subscription is a scoped handle around a running [Transport].
//
// A Subscription owns its message channel. The channel is closed after the
// transport has returned and released its connection, so consumers can range
// over [Subscription.Messages] until it is closed.
//
// Close is safe for concurrent use and idempotent.
type Subscription struct {
	id        string
	transport Transport
	messages  chan Message
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards done; emit holds the read side so the channel is never
	// written after it is closed.
	mu   sync.RWMutex
	done bool

	closeOnce sync.Once
}

// Subscribe starts t in a background goroutine and returns its handle.
//
// The subscription first emits a [KindConnecting] message, then forwards
// everything the transport emits. When the transport returns while ctx is
// still live, a final [KindError] (or [KindClose] for a clean remote close)
// is emitted. If ctx is already done, no transport is started and the
// message channel is closed immediately.
//
// If logger is nil, slog.Default() is used.
func Subscribe(ctx context.Context, t Transport, logger *slog.Logger) *Subscription {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		id:        uuid.NewString(),
		transport: t,
		messages:  make(chan Message, messageBuffer),
		now:       time.Now,
		cancel:    cancel,
	}
	s.logger = logger.With("subscription_id", s.id, "transport", t.Name())

	s.wg.Add(1)
	go s.run(runCtx)

	return s
}

// ID returns the subscription's correlation id, as used in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Messages returns the receive-only message channel.
//
// The channel is closed once the transport has returned.
func (s *Subscription) Messages() <-chan Message {
	return s.messages
}

// Close cancels the transport and waits for it to release its connection.
//
// Close is idempotent. Messages still buffered in the channel remain
// readable after Close returns.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.logger.Debug("subscription closing")
	})
	s.wg.Wait()
}

func (s *Subscription) run(ctx context.Context) {
	defer s.wg.Done()
	defer s.finish()

	if ctx.Err() != nil {
		return
	}

	s.emit(ctx, Message{Kind: KindConnecting})

	err := s.safeRun(ctx)

	if ctx.Err() != nil {
		// asked to stop; nothing to report
		return
	}

	switch {
	case err != nil:
		s.logger.Warn("feed transport failed", "error", err)
		s.emit(ctx, Message{Kind: KindError, Err: err})
	default:
		s.logger.Warn("feed closed by remote")
		s.emit(ctx, Message{Kind: KindClose, Err: ErrClosedByRemote})
	}
}

// safeRun runs the transport with panic recovery.
// A panic is logged with a correlation ID and reported as an error.
func (s *Subscription) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("transport panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = fmt.Errorf("transport panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.transport.Run(ctx, func(msg Message) { s.emit(ctx, msg) })
}

// emit stamps msg and delivers it unless the subscription is finished or ctx
// is done. Lifecycle signals block; this keeps health transitions ordered.
func (s *Subscription) emit(ctx context.Context, msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.done {
		return
	}
	if msg.At.IsZero() {
		msg.At = s.now()
	}

	select {
	case s.messages <- msg:
	case <-ctx.Done():
	}
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.done = true
	close(s.messages)
	s.mu.Unlock()
}
