package tts

import (
	"context"
	"encoding/binary"
	"testing"
)

func TestSynthesizeWAV_InputErrors(t *testing.T) {
	noKey := NewDeepgramClient("", "aura-2-thalia-en")
	if _, err := noKey.SynthesizeWAV(context.Background(), "hi"); err == nil {
		t.Fatal("expected error when api key missing")
	}

	c := NewDeepgramClient("dg-key", "")
	if c.model != "aura-2-thalia-en" {
		t.Fatalf("expected default model, got %q", c.model)
	}
	if _, err := c.SynthesizeWAV(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestWrapWAV(t *testing.T) {
	pcm := make([]byte, 960) // 10ms at 48kHz mono s16
	out := wrapWAV(pcm, 48000)

	if len(out) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header: % x", out[:12])
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+len(pcm)) {
		t.Fatalf("bad riff size: %d", got)
	}
	if string(out[12:16]) != "fmt " {
		t.Fatalf("missing fmt chunk")
	}
	if got := binary.LittleEndian.Uint16(out[20:22]); got != 1 {
		t.Fatalf("expected PCM format tag, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
		t.Fatalf("expected mono, got %d channels", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 48000 {
		t.Fatalf("bad sample rate: %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[28:32]); got != 96000 {
		t.Fatalf("bad byte rate: %d", got)
	}
	if got := binary.LittleEndian.Uint16(out[34:36]); got != 16 {
		t.Fatalf("bad bits per sample: %d", got)
	}
	if string(out[36:40]) != "data" {
		t.Fatalf("missing data chunk")
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("bad data size: %d", got)
	}
}
