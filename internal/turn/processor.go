package turn

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dhruv1710/thinkback/internal/convo"
)

// Generator produces one reply for one user utterance.
type Generator interface {
	Generate(ctx context.Context, userText string) (string, error)
}

// Synthesizer turns plain text into a hosted audio URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// BlobSynthesizer turns plain text into a complete audio file.
type BlobSynthesizer interface {
	SynthesizeWAV(ctx context.Context, text string) ([]byte, error)
}

// AudioStore hosts audio blobs and returns their public URL.
type AudioStore interface {
	UploadAudio(key string, data []byte) (string, error)
}

// Processor is the turn procedure: chat completion, markdown
// sanitization, then speech synthesis. Provider failures never escape
// as errors; they are encoded in the Reply (fallback text, empty
// AudioURL) so the conversation always advances.
type Processor struct {
	Chat   Generator
	Speech Synthesizer

	// Optional fallback path used when the primary synthesizer fails.
	Backup BlobSynthesizer
	Store  AudioStore
}

// ProcessTurn implements convo.TurnClient. The returned error is always
// nil; it exists only to satisfy the transport-shaped contract.
func (p *Processor) ProcessTurn(ctx context.Context, text string) (convo.Reply, error) {
	aiText, err := p.Chat.Generate(ctx, text)
	var display, speech string
	if err != nil || strings.TrimSpace(aiText) == "" {
		if err != nil {
			log.Printf("chat error: %v", err)
		}
		// When chat fails, the sanitized fallback is used both for
		// display and for synthesis. That asymmetry with the success
		// path is deliberate: the demo has always shown the spoken form
		// of the fallback, and we preserve that.
		speech = Sanitize(convo.FallbackReply)
		display = speech
	} else {
		display = aiText
		speech = Sanitize(aiText)
	}

	audioURL := p.synthesize(ctx, speech)
	return convo.Reply{AIText: display, AudioURL: audioURL}, nil
}

// synthesize tries the primary provider, then the backup chain. An
// empty return means there is nothing to play.
func (p *Processor) synthesize(ctx context.Context, text string) string {
	if text == "" {
		return ""
	}
	url, err := p.Speech.Synthesize(ctx, text)
	if err == nil {
		return url
	}
	log.Printf("speech synthesis error: %v", err)

	if p.Backup == nil || p.Store == nil {
		return ""
	}
	wav, err := p.Backup.SynthesizeWAV(ctx, text)
	if err != nil {
		log.Printf("backup synthesis error: %v", err)
		return ""
	}
	key := fmt.Sprintf("reply_%d.wav", time.Now().UnixNano())
	hosted, err := p.Store.UploadAudio(key, wav)
	if err != nil {
		log.Printf("audio upload error: %v", err)
		return ""
	}
	return hosted
}
