package barge

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Config holds the thresholds for barge-in detection.
type Config struct {
	SampleRate      int     // engine expects 10ms frames at this rate
	VoiceRMS        float64 // per-frame energy threshold
	FuseWinMs       int     // voting window for the on decision
	HysteresisOffMs int     // voting window that re-arms after silence
}

// DefaultConfig is tuned for 16kHz browser microphone audio.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		VoiceRMS:        300.0,
		FuseWinMs:       150,
		HysteresisOffMs: 200,
	}
}

// Detector watches the microphone feed while the assistant is speaking
// and fires once when sustained voice energy indicates the user is
// talking over the playback. The host reacts by issuing the same
// start-capture action an explicit barge-in would.
type Detector struct {
	cfg       Config
	onTrigger func()

	mu       sync.Mutex
	speaking bool
	votesOn  *voteWindow
	votesOff *voteWindow
	smooth   []bool
}

// NewDetector constructs a detector; onTrigger runs outside the
// detector lock.
func NewDetector(cfg Config, onTrigger func()) *Detector {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.VoiceRMS == 0 {
		cfg.VoiceRMS = 300.0
	}
	return &Detector{
		cfg:       cfg,
		onTrigger: onTrigger,
		votesOn:   newVoteWindow(cfg.FuseWinMs),
		votesOff:  newVoteWindow(cfg.HysteresisOffMs),
	}
}

// SetSpeaking toggles detection; triggers fire only while speaking.
func (d *Detector) SetSpeaking(on bool) {
	d.mu.Lock()
	d.speaking = on
	d.votesOn.Reset()
	d.votesOff.Reset()
	d.smooth = nil
	d.mu.Unlock()
}

// FeedPCM16 accepts arbitrary-length PCM16LE mono audio at the
// configured sample rate and segments it into 10ms frames.
func (d *Detector) FeedPCM16(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	samplesPer10ms := d.cfg.SampleRate / 100
	fired := false
	for off := 0; off+samplesPer10ms*2 <= len(pcm); off += samplesPer10ms * 2 {
		if d.onFrame(pcm[off : off+samplesPer10ms*2]) {
			fired = true
		}
	}
	if fired && d.onTrigger != nil {
		d.onTrigger()
	}
}

// onFrame runs per 10ms frame; returns true when the fused vote crosses
// the trigger threshold.
func (d *Detector) onFrame(frame []byte) bool {
	voiced := d.isSpeech(frame)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.speaking {
		return false
	}
	d.votesOn.Push(voiced)
	d.votesOff.Push(!voiced)
	if d.votesOn.Full() && d.votesOn.Ratio() >= 2.0/3.0 {
		d.votesOn.Reset()
		d.votesOff.Reset()
		return true
	}
	if d.votesOff.Full() && d.votesOff.Ratio() >= 2.0/3.0 {
		d.votesOn.Reset()
	}
	return false
}

// isSpeech is a smoothed RMS energy gate.
func (d *Detector) isSpeech(frame []byte) bool {
	var sum float64
	n := len(frame) / 2
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(frame[i*2 : i*2+2])))
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	b := rms >= d.cfg.VoiceRMS

	d.mu.Lock()
	defer d.mu.Unlock()
	d.smooth = append(d.smooth, b)
	const smoothN = 4
	if len(d.smooth) > smoothN {
		d.smooth = d.smooth[len(d.smooth)-smoothN:]
	}
	trueCount := 0
	for _, x := range d.smooth {
		if x {
			trueCount++
		}
	}
	return trueCount*2 >= len(d.smooth)
}

type voteWindow struct {
	winDur time.Duration
	hist   []bool
}

func newVoteWindow(ms int) *voteWindow {
	return &voteWindow{winDur: time.Duration(ms) * time.Millisecond}
}

func (v *voteWindow) Push(b bool) {
	v.hist = append(v.hist, b)
	max := int(v.winDur/(10*time.Millisecond)) + 1
	if len(v.hist) > max {
		v.hist = v.hist[len(v.hist)-max:]
	}
}

// Full reports whether the window holds its full duration of frames.
func (v *voteWindow) Full() bool {
	return len(v.hist) >= int(v.winDur/(10*time.Millisecond))
}

func (v *voteWindow) Ratio() float64 {
	if len(v.hist) == 0 {
		return 0
	}
	var t int
	for _, b := range v.hist {
		if b {
			t++
		}
	}
	return float64(t) / float64(len(v.hist))
}

func (v *voteWindow) Reset() {
	v.hist = v.hist[:0]
}
