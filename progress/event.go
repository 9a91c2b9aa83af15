// Package progress carries stage-boundary events from the generator to
// observers: callbacks, channels, NATS subjects and Kafka topics.
package progress

import (
	"time"
)

// Event is one progress notification.
type Event struct {
	RequestID string    `json:"requestId"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Percent   int       `json:"percent"`
	Time      time.Time `json:"time"`
}

// Func receives progress events. Implementations must not block for long;
// wrap slow sinks with Async.
type Func func(Event)

// Nop discards events.
func Nop(Event) {}

// Multi fans an event out to every non-nil fn in order.
func Multi(fns ...Func) Func {
	var live []Func
	for _, fn := range fns {
		if fn != nil {
			live = append(live, fn)
		}
	}
	switch len(live) {
	case 0:
		return Nop
	case 1:
		return live[0]
	}
	return func(e Event) {
		for _, fn := range live {
			fn(e)
		}
	}
}

// Channel returns a Func that sends to ch without blocking. Events are
// dropped while ch is full.
func Channel(ch chan<- Event) Func {
	return func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}
}
