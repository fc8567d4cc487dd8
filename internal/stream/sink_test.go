package stream

import (
	"errors"
	"sync"
)

var errBrokenPipe = errors.New("broken pipe")

type sentEvent struct {
	Name string
	Data string
}

// fakeSink は書き込まれたイベントを記録するテスト用Sink。
type fakeSink struct {
	mu     sync.Mutex
	events []sentEvent
	fail   bool
	panics bool
}

func (s *fakeSink) WriteEvent(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics {
		panic("sink exploded")
	}
	if s.fail {
		return errBrokenPipe
	}
	s.events = append(s.events, sentEvent{Name: name, Data: data})
	return nil
}

func (s *fakeSink) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *fakeSink) Events() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentEvent, len(s.events))
	copy(out, s.events)
	return out
}
