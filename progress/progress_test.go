package progress

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestMulti(t *testing.T) {
	var got []string
	a := func(e Event) { got = append(got, "a:"+e.Stage) }
	b := func(e Event) { got = append(got, "b:"+e.Stage) }
	Multi(a, nil, b)(Event{Stage: "map"})
	if len(got) != 2 || got[0] != "a:map" || got[1] != "b:map" {
		t.Errorf("got %v", got)
	}
	Multi()(Event{}) // must not panic
}

func TestChannelDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	fn := Channel(ch)
	fn(Event{Stage: "one"})
	fn(Event{Stage: "two"})
	if e := <-ch; e.Stage != "one" {
		t.Errorf("stage = %q", e.Stage)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event %+v", e)
	default:
	}
}

func TestAsyncDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	s := Async(func(e Event) {
		mu.Lock()
		got = append(got, e.Percent)
		mu.Unlock()
	}, 10, nil)
	for _, p := range []int{0, 20, 40, 60, 80, 100} {
		s.Report(Event{Percent: p})
	}
	s.Close()
	if len(got) != 6 || got[5] != 100 {
		t.Errorf("got %v", got)
	}
	s.Report(Event{})
	if s.Dropped() != 1 {
		t.Errorf("dropped after close = %d, want 1", s.Dropped())
	}
}

func TestAsyncNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	s := Async(func(Event) { <-release }, 1, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Report(Event{Percent: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a stuck sink")
	}
	if s.Dropped() == 0 {
		t.Error("expected dropped events")
	}
	close(release)
	s.Close()
}

func TestAsyncRecoversPanics(t *testing.T) {
	calls := 0
	s := Async(func(e Event) {
		calls++
		if e.Percent == 0 {
			panic("sink exploded")
		}
	}, 4, nil)
	s.Report(Event{Percent: 0})
	s.Report(Event{Percent: 20})
	s.Close()
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATS(pub, "progress", nil)
	sink.Report(Event{RequestID: "req-1", Stage: "decompose", Percent: 0, Message: "Analyzing"})
	sink.Report(Event{Stage: "complete", Percent: 100})

	if len(pub.subjects) != 2 || pub.subjects[0] != "progress.req-1" || pub.subjects[1] != "progress" {
		t.Fatalf("subjects = %v", pub.subjects)
	}
	var e Event
	if err := json.Unmarshal(pub.payloads[0], &e); err != nil {
		t.Fatal(err)
	}
	if e.Stage != "decompose" || e.Message != "Analyzing" {
		t.Errorf("event = %+v", e)
	}

	pub.err = errors.New("disconnected")
	sink.Report(Event{}) // logged, not propagated
}

func TestKafkaSink(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Stage != "optimize" || e.Percent != 60 {
			return errors.New("unexpected event payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafka(producer, "", nil)
	sink.Report(Event{RequestID: "r", Stage: "optimize", Percent: 60})
	sink.Report(Event{RequestID: "r", Stage: "assemble", Percent: 80})
	if err := sink.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
