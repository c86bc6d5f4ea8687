package chat_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
)

type collectSink struct {
	mu     sync.Mutex
	events []chat.StreamEvent
	failAt int // fail the nth send (1-based), 0 disables
	sent   int
}

func (s *collectSink) Send(ev chat.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	if s.failAt > 0 && s.sent >= s.failAt {
		return errors.New("client gone")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *collectSink) snapshot() []chat.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.StreamEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestMultiplexerPreservesOrder(t *testing.T) {
	sink := &collectSink{}
	mux := chat.NewMultiplexer(sink, zerolog.Nop())

	mux.Send(chat.ThreadCreatedEvent(chat.ThreadInfo{ThreadID: "t1"}))
	mux.Send(chat.TextDeltaEvent("m1", "hel"))
	mux.Send(chat.TitleUpdatedEvent("Greetings"))
	mux.Send(chat.TextDeltaEvent("m1", "lo"))
	mux.Send(chat.DoneEvent())

	if err := mux.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := sink.snapshot()
	want := []chat.EventType{
		chat.EventThreadCreated,
		chat.EventTextDelta,
		chat.EventTitleUpdated,
		chat.EventTextDelta,
		chat.EventDone,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, ev := range got {
		if ev.Type != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
	}
	if got[1].Delta+got[3].Delta != "hello" {
		t.Errorf("text deltas reordered: %q %q", got[1].Delta, got[3].Delta)
	}
}

func TestMultiplexerDropsEventsAfterTerminal(t *testing.T) {
	sink := &collectSink{}
	mux := chat.NewMultiplexer(sink, zerolog.Nop())

	if !mux.Send(chat.TextDeltaEvent("m1", "hi")) {
		t.Fatal("send before terminal should be accepted")
	}
	mux.Send(chat.DoneEvent())
	if err := mux.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if mux.Send(chat.TextDeltaEvent("m1", "late")) {
		t.Error("send after close should be rejected")
	}

	got := sink.snapshot()
	if got[len(got)-1].Type != chat.EventDone {
		t.Errorf("last event should be done, got %s", got[len(got)-1].Type)
	}
	for _, ev := range got {
		if ev.Delta == "late" {
			t.Error("event after terminal was forwarded")
		}
	}
}

type slowSink struct {
	collectSink
	delay time.Duration
}

func (s *slowSink) Send(ev chat.StreamEvent) error {
	time.Sleep(s.delay)
	return s.collectSink.Send(ev)
}

func TestMultiplexerDropsEventsQueuedBehindTerminal(t *testing.T) {
	sink := &slowSink{delay: 20 * time.Millisecond}
	mux := chat.NewMultiplexer(sink, zerolog.Nop())

	mux.Send(chat.TextDeltaEvent("m1", "hi"))
	mux.Send(chat.DoneEvent())
	// The slow sink keeps done sitting in the channel, so this send lands in
	// the queue before the forwarder latches the terminal state.
	mux.Send(chat.TitleUpdatedEvent("Late Title"))

	if err := mux.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := sink.snapshot()
	if len(got) == 0 || got[len(got)-1].Type != chat.EventDone {
		t.Fatalf("last delivered event should be done, got %+v", got)
	}
	for _, ev := range got {
		if ev.Type == chat.EventTitleUpdated {
			t.Errorf("event delivered after done: %+v", got)
		}
	}
}

func TestMultiplexerSurfacesSinkFailure(t *testing.T) {
	sink := &collectSink{failAt: 2}
	mux := chat.NewMultiplexer(sink, zerolog.Nop())

	mux.Send(chat.TextDeltaEvent("m1", "a"))
	mux.Send(chat.TextDeltaEvent("m1", "b"))

	err := mux.Close()
	if err == nil {
		t.Fatal("expected sink failure from Close")
	}
}

func TestMultiplexerCloseIsIdempotent(t *testing.T) {
	sink := &collectSink{}
	mux := chat.NewMultiplexer(sink, zerolog.Nop())

	mux.Send(chat.DoneEvent())
	if err := mux.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mux.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
