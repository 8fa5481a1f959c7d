package transport

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

var errSubscriberClosed = errors.New("subscriber is closed")

// sink is the write handle of one live stream subscriber.
type sink interface {
	Send(msg *sse.Message) error
	Close()
}

// registry is the set of live stream subscribers, keyed by identity. Its size always
// equals the number of sinks added that have neither been removed nor failed a write.
type registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	sinks  map[uuid.UUID]sink
	closed bool
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		logger: logger,
		sinks:  make(map[uuid.UUID]sink),
	}
}

// open makes the registry accept subscribers again after closeAll.
func (r *registry) open() {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()
}

// add registers s under id. It reports false, and closes s, when the registry is
// shutting down.
func (r *registry) add(id uuid.UUID, s sink) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.Close()
		return false
	}
	r.sinks[id] = s
	r.mu.Unlock()
	return true
}

// remove drops the sink registered under id and closes it. It reports whether the sink
// was still registered.
func (r *registry) remove(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sinks[id]
	delete(r.sinks, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// broadcast writes msg to every live sink. A sink whose write fails is removed at once,
// without retry, so one dead subscriber never blocks delivery to the rest. It returns the
// number of sinks the message was delivered to.
func (r *registry) broadcast(msg *sse.Message) int {
	type entry struct {
		id uuid.UUID
		s  sink
	}

	r.mu.Lock()
	entries := make([]entry, 0, len(r.sinks))
	for id, s := range r.sinks {
		entries = append(entries, entry{id: id, s: s})
	}
	r.mu.Unlock()

	delivered := 0
	for _, e := range entries {
		if err := e.s.Send(msg); err != nil {
			r.logger.Warn("removing subscriber after failed write",
				slog.String("subscriberID", e.id.String()),
				slog.String("err", err.Error()),
			)
			r.remove(e.id)
			continue
		}
		delivered++
	}
	return delivered
}

// closeAll removes and closes every sink and refuses new ones until open is called.
func (r *registry) closeAll() {
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = make(map[uuid.UUID]sink)
	r.closed = true
	r.mu.Unlock()

	for _, s := range sinks {
		s.Close()
	}
}

// subscriber is the sink of one GET events connection.
type subscriber struct {
	// mu serializes writes, sse.Session is not safe for concurrent use.
	mu   sync.Mutex
	sess *sse.Session

	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(sess *sse.Session) *subscriber {
	return &subscriber{
		sess: sess,
		done: make(chan struct{}),
	}
}

// Send writes and flushes msg to the client.
func (s *subscriber) Send(msg *sse.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(msg)
}

// greet writes msg and then calls register while still holding the write lock, so no
// broadcast can reach the client ahead of msg. It reports what register returned.
func (s *subscriber) greet(msg *sse.Message, register func() bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sendLocked(msg); err != nil {
		return false, err
	}
	return register(), nil
}

func (s *subscriber) sendLocked(msg *sse.Message) error {
	select {
	case <-s.done:
		return errSubscriberClosed
	default:
	}

	if err := s.sess.Send(msg); err != nil {
		return err
	}
	return s.sess.Flush()
}

// Close releases the connection handler blocked on the subscriber.
func (s *subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// wait blocks until no write is in progress. Writes started after Close fail fast, so
// once wait returns the connection can be released safely.
func (s *subscriber) wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
}
