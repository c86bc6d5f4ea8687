package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives multiplexed stream events in order. The HTTP layer implements
// it over SSE; tests implement it over a slice.
type Sink interface {
	Send(event StreamEvent) error
}

// Multiplexer merges the primary generation stream with side-channel events
// (thread-created, title-updated) into one ordered stream on a single sink.
//
// A single goroutine owns the sink, draining an internal FIFO channel that
// both the orchestrator and side-channel producers write to. Channel sends
// block when the downstream transport is slow, suspending upstream production
// instead of buffering unboundedly. After a terminal done or error event is
// forwarded, later events are dropped.
type Multiplexer struct {
	sink Sink
	ch   chan StreamEvent
	log  zerolog.Logger

	mu       sync.Mutex
	closed   bool
	terminal bool

	senders sync.WaitGroup
	wg      sync.WaitGroup
	sinkErr error
}

const multiplexerBuffer = 16

// NewMultiplexer starts the forwarding goroutine. Callers must invoke Close
// when the turn ends.
func NewMultiplexer(sink Sink, log zerolog.Logger) *Multiplexer {
	m := &Multiplexer{
		sink: sink,
		ch:   make(chan StreamEvent, multiplexerBuffer),
		log:  log.With().Str("component", "stream-multiplexer").Logger(),
	}
	m.wg.Add(1)
	go m.forward()
	return m
}

func (m *Multiplexer) forward() {
	defer m.wg.Done()
	for ev := range m.ch {
		// Latch before touching the sink: an event enqueued behind a terminal
		// done/error (a late side-channel send can win the race in Send) must
		// never reach the client.
		m.mu.Lock()
		if m.terminal {
			m.mu.Unlock()
			m.log.Debug().Str("event", string(ev.Type)).Msg("dropping event queued behind terminal")
			continue
		}
		if ev.IsTerminal() {
			m.terminal = true
		}
		m.mu.Unlock()

		if err := m.sink.Send(ev); err != nil {
			m.mu.Lock()
			if m.sinkErr == nil {
				m.sinkErr = err
			}
			m.terminal = true
			m.mu.Unlock()
			m.log.Warn().Err(err).Msg("sink rejected event, dropping remainder of stream")
		}
	}
}

// Send enqueues an event. Events submitted after a terminal event, a sink
// failure or Close are dropped and reported as false. The channel send may
// block; that is the backpressure contract.
func (m *Multiplexer) Send(ev StreamEvent) bool {
	m.mu.Lock()
	if m.closed || m.terminal {
		m.mu.Unlock()
		return false
	}
	// Registering under the mutex keeps Close from closing the channel while
	// this send is in flight.
	m.senders.Add(1)
	m.mu.Unlock()

	m.ch <- ev
	m.senders.Done()
	return true
}

// Close stops accepting events, waits for in-flight sends and the forwarding
// goroutine to drain, and reports any sink failure.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	alreadyClosed := m.closed
	m.closed = true
	m.mu.Unlock()

	if !alreadyClosed {
		m.senders.Wait()
		close(m.ch)
	}
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinkErr
}
