package convo

import "context"

// Phase is the single turn-taking state the whole session observes.
// Exactly one phase is active at any instant; the Machine owns it.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseAwaitingReply
	PhaseSpeaking
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseAwaitingReply:
		return "awaitingReply"
	case PhaseSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one line of the conversation transcript. Entries are
// append-only and never mutated after being recorded.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Reply is the turn procedure's response. An empty AudioURL means
// synthesis produced nothing to play.
type Reply struct {
	AIText   string `json:"aiText"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// Capture is the transcript capture contract. Start begins one
// utterance; the implementation reports interim/final text and errors
// back through the Machine's Handle* methods from its own goroutines.
// At most one capture session is active at a time.
type Capture interface {
	Start() error
	Stop()
}

// TurnClient sends finalized user text to the turn procedure. Provider
// failures are encoded in the Reply; err covers transport failure only.
type TurnClient interface {
	ProcessTurn(ctx context.Context, text string) (Reply, error)
}

// Player plays one audio resource at a time. Play replaces any active
// playback; Stop aborts immediately. Completion and errors come back
// through the Machine's HandlePlaybackDone/HandlePlaybackError.
type Player interface {
	Play(url string)
	Stop()
}
