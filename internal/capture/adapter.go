package capture

import (
	"context"
	"fmt"
	"sync"
)

// Sink consumes capture events; the conversation state machine
// satisfies it.
type Sink interface {
	HandleInterim(text string)
	HandleFinal(text string)
	HandleCaptureError(err error)
}

// Stream is the transcript source the gate pumps from.
// AssemblyAIStream satisfies it.
type Stream interface {
	Connected() bool
	Updates() <-chan Update
	Errors() <-chan error
}

// Gate adapts a persistent Stream to the machine's capture contract.
// The underlying ASR connection outlives individual utterances; Start
// and Stop only gate which transcript events reach the sink, so at most
// one capture session is observable at a time.
type Gate struct {
	stream Stream

	mu     sync.Mutex
	sink   Sink
	active bool
}

// NewGate wraps an already-constructed stream.
func NewGate(stream Stream) *Gate {
	return &Gate{stream: stream}
}

// Bind sets the event sink. Must be called before Run.
func (g *Gate) Bind(sink Sink) {
	g.mu.Lock()
	g.sink = sink
	g.mu.Unlock()
}

// Start opens a capture session. The stream must be connected.
func (g *Gate) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stream.Connected() {
		return fmt.Errorf("capture stream not connected")
	}
	g.active = true
	return nil
}

// Stop closes the capture session without producing a final result.
// Safe to call when no session is active.
func (g *Gate) Stop() {
	g.mu.Lock()
	g.active = false
	g.mu.Unlock()
}

// Run pumps stream events to the sink until the context ends or the
// stream closes. Events arriving outside an active session are
// discarded.
func (g *Gate) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-g.stream.Updates():
			if !ok {
				return
			}
			sink, active := g.snapshot()
			if !active || sink == nil {
				continue
			}
			if u.Final {
				// One final per session: the machine calls Stop on
				// final, but deactivate here too so a late duplicate
				// cannot slip through.
				g.Stop()
				sink.HandleFinal(u.Text)
			} else {
				sink.HandleInterim(u.Text)
			}
		case err, ok := <-g.stream.Errors():
			if !ok {
				return
			}
			sink, active := g.snapshot()
			if !active || sink == nil {
				continue
			}
			g.Stop()
			sink.HandleCaptureError(err)
		}
	}
}

func (g *Gate) snapshot() (Sink, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sink, g.active
}
