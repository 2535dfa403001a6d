package playback

import (
	"context"
	"sync"
	"time"
)

// Sink consumes fetched audio bytes and performs delivery (e.g. binary
// WebSocket frames to the browser). Implementations buffer internally
// and pace delivery.
type Sink interface {
	Write(p []byte)
	FlushTail()
	// Reset drops any queued audio immediately (used for barge-in).
	Reset()
}

// PacedSink slices buffered audio into fixed-size frames and emits them
// on a fixed interval, so a fast origin fetch does not firehose the
// client connection.
type PacedSink struct {
	emit       func([]byte)
	frameBytes int
	frames     chan []byte
	buf        []byte
	stopCh     chan struct{}
	stopped    bool
	inFlight   bool
	mu         sync.Mutex
}

// NewPacedSink emits frameBytes-sized frames every interval.
func NewPacedSink(emit func([]byte), frameBytes int, interval time.Duration) *PacedSink {
	s := &PacedSink{
		emit:       emit,
		frameBytes: frameBytes,
		frames:     make(chan []byte, 512),
		stopCh:     make(chan struct{}),
	}
	go s.pacer(interval)
	return s
}

// Write buffers audio and enqueues any complete frames.
func (s *PacedSink) Write(p []byte) {
	if len(p) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	for len(s.buf) >= s.frameBytes {
		frame := make([]byte, s.frameBytes)
		copy(frame, s.buf[:s.frameBytes])
		s.pushFrame(frame)
		s.buf = s.buf[s.frameBytes:]
	}
}

// FlushTail emits the remaining partial frame.
func (s *PacedSink) FlushTail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return
	}
	frame := make([]byte, len(s.buf))
	copy(frame, s.buf)
	s.pushFrame(frame)
	s.buf = s.buf[:0]
}

// Reset clears buffered and queued frames to support immediate
// barge-in.
func (s *PacedSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = s.buf[:0]
	for {
		select {
		case <-s.frames:
		default:
			return
		}
	}
}

// WaitDrain blocks until all queued frames have been emitted or the
// context ends. A frame the pacer has dequeued but not yet emitted
// still counts as queued.
func (s *PacedSink) WaitDrain(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		empty := len(s.frames) == 0 && len(s.buf) == 0 && !s.inFlight
		s.mu.Unlock()
		if empty {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Close stops the pacer.
func (s *PacedSink) Close() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	s.mu.Unlock()
}

func (s *PacedSink) pacer(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			var frame []byte
			select {
			case frame = <-s.frames:
				s.inFlight = true
			default:
			}
			s.mu.Unlock()
			if frame != nil {
				s.emit(frame)
				s.mu.Lock()
				s.inFlight = false
				s.mu.Unlock()
			}
		}
	}
}

// pushFrame enqueues without blocking the writer; when the queue is
// full the oldest frame is dropped, favoring liveness over fidelity.
func (s *PacedSink) pushFrame(frame []byte) {
	for {
		select {
		case s.frames <- frame:
			return
		default:
			select {
			case <-s.frames:
			default:
			}
		}
	}
}
