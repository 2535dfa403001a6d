package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Chat completion provider (required).
	CerebrasKey     string
	CerebrasModelID string

	// Primary speech synthesis provider (required). The endpoint must
	// answer with a JSON body carrying the synthesized audio URL.
	SpeechKey   string
	SpeechURL   string
	SpeechModel string
	SpeechVoice string

	// Fallback synthesis via Deepgram Aura + Supabase hosting (optional).
	DeepgramKey    string
	DeepgramModel  string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Server-side capture for WebSocket sessions (optional).
	AssemblyAIKey string
}

// Load reads environment variables and returns Config with sane defaults.
// A missing chat or speech API key is a startup error: the demo cannot
// process a single turn without them, so we fail fast instead of
// degrading silently.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	if cerebrasKey == "" {
		return Config{}, fmt.Errorf("CEREBRAS_API_KEY not set")
	}
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "llama-3.3-70b"
	}

	speechKey := os.Getenv("SPEECH_API_KEY")
	if speechKey == "" {
		return Config{}, fmt.Errorf("SPEECH_API_KEY not set")
	}
	speechModel := os.Getenv("SPEECH_MODEL_ID")
	if speechModel == "" {
		speechModel = "tts-1"
	}
	speechVoice := os.Getenv("SPEECH_VOICE_ID")
	if speechVoice == "" {
		speechVoice = "nova"
	}

	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if deepgramModel == "" {
		deepgramModel = "aura-2-thalia-en"
	}
	bucket := os.Getenv("SUPABASE_AUDIO_BUCKET")
	if bucket == "" {
		bucket = "debate-audio"
	}

	if os.Getenv("ASSEMBLYAI_API_KEY") == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - WebSocket session capture will not work")
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:     addr,
		CerebrasKey:     cerebrasKey,
		CerebrasModelID: cerebrasModel,
		SpeechKey:       speechKey,
		SpeechURL:       os.Getenv("SPEECH_API_URL"),
		SpeechModel:     speechModel,
		SpeechVoice:     speechVoice,
		DeepgramKey:     os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:   deepgramModel,
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseKey:     os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:  bucket,
		AssemblyAIKey:   os.Getenv("ASSEMBLYAI_API_KEY"),
	}, nil
}
