package playback

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *frameRecorder) emit(b []byte) {
	r.mu.Lock()
	r.frames = append(r.frames, b)
	r.mu.Unlock()
}

func (r *frameRecorder) snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *frameRecorder) total() []byte {
	var all []byte
	for _, f := range r.snapshot() {
		all = append(all, f...)
	}
	return all
}

func TestPacedSink_FramingAndTail(t *testing.T) {
	rec := &frameRecorder{}
	s := NewPacedSink(rec.emit, 4, time.Millisecond)
	defer s.Close()

	s.Write([]byte("abcdefghij"))
	s.FlushTail()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.WaitDrain(ctx)

	frames := rec.snapshot()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if len(frames[0]) != 4 || len(frames[1]) != 4 || len(frames[2]) != 2 {
		t.Fatalf("unexpected frame sizes: %d/%d/%d", len(frames[0]), len(frames[1]), len(frames[2]))
	}
	if !bytes.Equal(rec.total(), []byte("abcdefghij")) {
		t.Fatalf("bytes mangled: %q", rec.total())
	}
}

func TestPacedSink_ResetDropsQueuedAudio(t *testing.T) {
	rec := &frameRecorder{}
	// Long interval so nothing leaves the queue before Reset.
	s := NewPacedSink(rec.emit, 4, time.Second)
	defer s.Close()

	s.Write([]byte("abcdefgh"))
	s.Reset()
	s.FlushTail()

	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no frames after reset, got %d", len(got))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.WaitDrain(ctx) // must return immediately on an empty sink
}

func TestPacedSink_PacesEmission(t *testing.T) {
	rec := &frameRecorder{}
	s := NewPacedSink(rec.emit, 2, 30*time.Millisecond)
	defer s.Close()

	s.Write([]byte("abcdef")) // 3 frames

	time.Sleep(45 * time.Millisecond)
	if got := len(rec.snapshot()); got > 2 {
		t.Fatalf("frames emitted faster than the pace: %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.WaitDrain(ctx)
}
