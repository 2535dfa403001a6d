package capture

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestLastWord(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Dogs are better", "better"},
		{"I think that, and", "and"},
		{"Right?!", "right"},
		{"one two THREE...", "three"},
	}
	for _, tc := range cases {
		if got := lastWord(tc.in); got != tc.want {
			t.Errorf("lastWord(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsContinuationLikely(t *testing.T) {
	likely := []string{"cats are great and", "I would if", "tell me about", "um"}
	for _, s := range likely {
		if !isContinuationLikely(s) {
			t.Errorf("expected continuation for %q", s)
		}
	}
	unlikely := []string{"", "that is my point", "cats are better"}
	for _, s := range unlikely {
		if isContinuationLikely(s) {
			t.Errorf("did not expect continuation for %q", s)
		}
	}
}

func TestUtteranceDelta(t *testing.T) {
	cases := []struct {
		name      string
		latest    string
		committed string
		want      string
	}{
		{"first utterance", "hello there", "", "hello there"},
		{"prefix growth", "hello there how are you", "hello there", "how are you"},
		{"no new text", "hello there", "hello there", ""},
		{"committed mid-transcript", "well hello there friend", "hello there", "friend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := utteranceDelta(tc.latest, tc.committed); got != tc.want {
				t.Fatalf("utteranceDelta(%q, %q) = %q, want %q", tc.latest, tc.committed, got, tc.want)
			}
		})
	}
}

// pcmTone builds n samples of PCM16LE at the given amplitude.
func pcmTone(n int, amplitude float64) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*float64(i)/80.0))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestDetectVoiceActivity(t *testing.T) {
	s := NewAssemblyAIStream("key")
	s.lastVoice = time.Now().Add(-time.Minute)

	// Near-silence must not refresh the voice timestamp.
	s.detectVoiceActivity(pcmTone(1600, 10))
	if s.RecentlyDetectedVoice(time.Second) {
		t.Fatal("silence registered as voice")
	}

	s.detectVoiceActivity(pcmTone(1600, 8000))
	if !s.RecentlyDetectedVoice(time.Second) {
		t.Fatal("loud tone did not register as voice")
	}
}

func TestClose_DuringUtteranceFinalization(t *testing.T) {
	for i := 0; i < 5; i++ {
		s := NewAssemblyAIStream("key")
		s.connected = true
		past := time.Now().Add(-2 * time.Second)
		s.accMu.Lock()
		s.latest = "dogs are better"
		s.lastUpdate = past
		s.lastVoice = past
		s.accMu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.finalizeDueToSilence()
		}()

		// Land Close inside the finalizer's stabilization grace window,
		// after its silence checks have passed.
		time.Sleep(stabilizationGrace / 2)
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("finalizer never returned")
		}
	}
}

type recordingSink struct {
	interims chan string
	finals   chan string
	errs     chan error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		interims: make(chan string, 16),
		finals:   make(chan string, 16),
		errs:     make(chan error, 16),
	}
}

func (r *recordingSink) HandleInterim(text string)    { r.interims <- text }
func (r *recordingSink) HandleFinal(text string)      { r.finals <- text }
func (r *recordingSink) HandleCaptureError(err error) { r.errs <- err }
