package barge

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
)

// pcmSine builds ms milliseconds of 16kHz PCM16LE at the given
// amplitude.
func pcmSine(ms int, amplitude float64) []byte {
	n := 16000 * ms / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestDetector_TriggersOnSustainedVoiceWhileSpeaking(t *testing.T) {
	var triggers int32
	d := NewDetector(DefaultConfig(), func() { atomic.AddInt32(&triggers, 1) })

	d.SetSpeaking(true)
	d.FeedPCM16(pcmSine(400, 8000))

	if atomic.LoadInt32(&triggers) == 0 {
		t.Fatal("sustained voice did not trigger barge-in")
	}
}

func TestDetector_IgnoresVoiceWhileNotSpeaking(t *testing.T) {
	var triggers int32
	d := NewDetector(DefaultConfig(), func() { atomic.AddInt32(&triggers, 1) })

	d.FeedPCM16(pcmSine(400, 8000))
	if atomic.LoadInt32(&triggers) != 0 {
		t.Fatal("trigger fired while assistant was not speaking")
	}

	// Disabling mid-stream resets the decision state.
	d.SetSpeaking(true)
	d.FeedPCM16(pcmSine(60, 8000))
	d.SetSpeaking(false)
	d.FeedPCM16(pcmSine(400, 8000))
	if atomic.LoadInt32(&triggers) != 0 {
		t.Fatal("trigger fired after speaking was disabled")
	}
}

func TestDetector_IgnoresSilence(t *testing.T) {
	var triggers int32
	d := NewDetector(DefaultConfig(), func() { atomic.AddInt32(&triggers, 1) })

	d.SetSpeaking(true)
	d.FeedPCM16(pcmSine(600, 50))
	if atomic.LoadInt32(&triggers) != 0 {
		t.Fatal("near-silence triggered barge-in")
	}
}

func TestVoteWindow(t *testing.T) {
	v := newVoteWindow(100)
	if v.Ratio() != 0 {
		t.Fatalf("empty window ratio = %v", v.Ratio())
	}
	for i := 0; i < 8; i++ {
		v.Push(true)
	}
	for i := 0; i < 2; i++ {
		v.Push(false)
	}
	if r := v.Ratio(); r < 0.7 || r > 0.85 {
		t.Fatalf("ratio = %v", r)
	}
	v.Reset()
	if v.Ratio() != 0 {
		t.Fatalf("ratio after reset = %v", v.Ratio())
	}
}
