package convo

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// FallbackReply is shown (and spoken) when the turn procedure cannot be
// reached at all.
const FallbackReply = "Sorry, I encountered an error."

// turnTimeout bounds one chat+synthesis round trip.
const turnTimeout = 20 * time.Second

// Hooks receive machine events. They run with the machine lock held and
// must not call back into the machine.
type Hooks struct {
	OnPhase   func(Phase)
	OnEntry   func(Entry)
	OnInterim func(string)
}

// Machine is the conversation state machine coordinating capture, the
// turn procedure and playback for a single session.
//
// Transitions are serialized under one mutex: each triggering event
// reads and writes the phase atomically. A monotonically increasing
// turn sequence token guards against stale turn responses: an
// interruption bumps the token, and a response carrying an old token is
// discarded without touching phase or transcript.
type Machine struct {
	capture Capture
	client  TurnClient
	player  Player
	hooks   Hooks

	mu           sync.Mutex
	phase        Phase
	entries      []Entry
	utterance    string
	pendingAudio string
	turnSeq      uint64
}

// NewMachine constructs an idle machine.
func NewMachine(capture Capture, client TurnClient, player Player, hooks Hooks) *Machine {
	return &Machine{capture: capture, client: client, player: player, hooks: hooks}
}

// Phase returns the current turn phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// PendingAudio returns the audio locator currently bound to playback,
// or "" when nothing is pending.
func (m *Machine) PendingAudio() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingAudio
}

// Transcript returns a snapshot of the conversation so far.
func (m *Machine) Transcript() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// StartCapture is the user's start-listening action.
//
// From idle it opens a capture session. From speaking (or while a turn
// is still in flight) it is a barge-in: playback stops synchronously,
// the pending turn is superseded, and the machine moves directly to
// listening without passing through idle. While already listening it is
// a no-op.
func (m *Machine) StartCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case PhaseListening:
		return
	case PhaseSpeaking:
		m.player.Stop()
		m.pendingAudio = ""
		m.turnSeq++
	case PhaseAwaitingReply:
		// Supersede the in-flight turn; its response must not resurrect
		// a stale phase when it eventually arrives.
		m.turnSeq++
	}
	m.utterance = ""
	if err := m.capture.Start(); err != nil {
		log.Printf("capture start: %v", err)
		m.setPhase(PhaseIdle)
		return
	}
	m.setPhase(PhaseListening)
}

// StopCapture ends capture without waiting for a final transcript.
// Calling it when not listening is a no-op.
func (m *Machine) StopCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseListening {
		return
	}
	m.capture.Stop()
	m.utterance = ""
	m.setPhase(PhaseIdle)
}

// HandleInterim records the best-effort transcript for the current
// utterance. Interim text is overwritten by every subsequent update.
func (m *Machine) HandleInterim(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseListening {
		return
	}
	m.utterance = text
	if m.hooks.OnInterim != nil {
		m.hooks.OnInterim(text)
	}
}

// HandleFinal ends the current utterance. Non-empty text becomes a user
// entry and starts a turn; whitespace-only text ends the utterance with
// nothing to send.
func (m *Machine) HandleFinal(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseListening {
		return
	}
	m.capture.Stop()
	m.utterance = ""
	text = strings.TrimSpace(text)
	if text == "" {
		m.setPhase(PhaseIdle)
		return
	}
	m.appendEntry(Entry{Speaker: SpeakerUser, Text: text})
	m.setPhase(PhaseAwaitingReply)
	m.turnSeq++
	seq := m.turnSeq
	go m.runTurn(seq, text)
}

// HandleCaptureError recovers a failed capture session locally.
func (m *Machine) HandleCaptureError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseListening {
		return
	}
	log.Printf("capture error: %v", err)
	m.capture.Stop()
	m.utterance = ""
	m.setPhase(PhaseIdle)
}

// runTurn performs the single long-latency operation of a turn off the
// event path, then feeds the result back through handleReply.
func (m *Machine) runTurn(seq uint64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	reply, err := m.client.ProcessTurn(ctx, text)
	m.handleReply(seq, reply, err)
}

func (m *Machine) handleReply(seq uint64, reply Reply, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.turnSeq || m.phase != PhaseAwaitingReply {
		// Superseded turn: drop the response entirely.
		return
	}
	if err != nil {
		log.Printf("turn request failed: %v", err)
		reply = Reply{AIText: FallbackReply}
	}
	m.appendEntry(Entry{Speaker: SpeakerAssistant, Text: reply.AIText})
	if reply.AudioURL == "" {
		m.setPhase(PhaseIdle)
		return
	}
	m.pendingAudio = reply.AudioURL
	m.setPhase(PhaseSpeaking)
	m.player.Play(reply.AudioURL)
}

// HandlePlaybackDone returns the machine to idle after the assistant
// finished speaking.
func (m *Machine) HandlePlaybackDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseSpeaking {
		return
	}
	m.pendingAudio = ""
	m.setPhase(PhaseIdle)
}

// HandlePlaybackError recovers a failed playback locally; the reply text
// is already in the transcript.
func (m *Machine) HandlePlaybackError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseSpeaking {
		return
	}
	log.Printf("playback error: %v", err)
	m.pendingAudio = ""
	m.setPhase(PhaseIdle)
}

func (m *Machine) setPhase(p Phase) {
	if m.phase == p {
		return
	}
	m.phase = p
	if m.hooks.OnPhase != nil {
		m.hooks.OnPhase(p)
	}
}

func (m *Machine) appendEntry(e Entry) {
	m.entries = append(m.entries, e)
	if m.hooks.OnEntry != nil {
		m.hooks.OnEntry(e)
	}
}
