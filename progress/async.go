package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the queue length used by Async when size <= 0.
const DefaultBuffer = 64

// AsyncSink delivers events to a wrapped Func on its own goroutine. Report
// never blocks: when the queue is full the event is dropped and counted.
type AsyncSink struct {
	next    Func
	queue   chan Event
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	logger  *slog.Logger
}

// Async starts a delivery goroutine for next. Call Close to drain and stop it.
func Async(next Func, size int, logger *slog.Logger) *AsyncSink {
	if size <= 0 {
		size = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		next:   next,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.queue {
		s.deliver(e)
	}
}

func (s *AsyncSink) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("progress sink panicked", "stage", e.Stage, "panic", r)
		}
	}()
	s.next(e)
}

// Report enqueues e.
func (s *AsyncSink) Report(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded so far.
func (s *AsyncSink) Dropped() int64 { return s.dropped.Load() }

// Close stops accepting events and waits until the queue is drained.
func (s *AsyncSink) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	<-s.done
}
