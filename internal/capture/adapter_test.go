package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newConnectedStream() *AssemblyAIStream {
	s := NewAssemblyAIStream("key")
	s.connected = true
	return s
}

func TestGate_StartRequiresConnection(t *testing.T) {
	g := NewGate(NewAssemblyAIStream("key"))
	if err := g.Start(); err == nil {
		t.Fatal("expected error for disconnected stream")
	}
}

func TestGate_DiscardsEventsOutsideSession(t *testing.T) {
	stream := newConnectedStream()
	sink := newRecordingSink()
	g := NewGate(stream)
	g.Bind(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	stream.updates <- Update{Text: "ignored interim"}
	stream.updates <- Update{Text: "ignored final", Final: true}
	time.Sleep(20 * time.Millisecond)

	select {
	case got := <-sink.interims:
		t.Fatalf("unexpected interim %q before start", got)
	case got := <-sink.finals:
		t.Fatalf("unexpected final %q before start", got)
	default:
	}
}

func TestGate_ForwardsDuringSession(t *testing.T) {
	stream := newConnectedStream()
	sink := newRecordingSink()
	g := NewGate(stream)
	g.Bind(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	stream.updates <- Update{Text: "hello"}
	stream.updates <- Update{Text: "hello world", Final: true}

	select {
	case got := <-sink.interims:
		if got != "hello" {
			t.Fatalf("interim = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("interim never arrived")
	}
	select {
	case got := <-sink.finals:
		if got != "hello world" {
			t.Fatalf("final = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("final never arrived")
	}

	// A final ends the session; later events must be dropped until the
	// next Start.
	stream.updates <- Update{Text: "late", Final: true}
	time.Sleep(20 * time.Millisecond)
	select {
	case got := <-sink.finals:
		t.Fatalf("unexpected final %q after session end", got)
	default:
	}
}

func TestGate_ForwardsErrorsAndDeactivates(t *testing.T) {
	stream := newConnectedStream()
	sink := newRecordingSink()
	g := NewGate(stream)
	g.Bind(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	stream.errs <- errors.New("socket closed")

	select {
	case err := <-sink.errs:
		if err == nil {
			t.Fatal("nil error forwarded")
		}
	case <-time.After(time.Second):
		t.Fatal("error never arrived")
	}
	if _, active := g.snapshot(); active {
		t.Fatal("gate still active after capture error")
	}
}
