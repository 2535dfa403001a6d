package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhruv1710/thinkback/internal/config"
	"github.com/dhruv1710/thinkback/internal/gateway"
	"github.com/dhruv1710/thinkback/internal/httpserver"
	"github.com/dhruv1710/thinkback/internal/llm"
	"github.com/dhruv1710/thinkback/internal/storage"
	"github.com/dhruv1710/thinkback/internal/tts"
	"github.com/dhruv1710/thinkback/internal/turn"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	speech := tts.NewSpeechClient(cfg.SpeechKey, cfg.SpeechModel, cfg.SpeechVoice)
	if cfg.SpeechURL != "" {
		speech.Endpoint = cfg.SpeechURL
	}

	processor := &turn.Processor{
		Chat:   llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID),
		Speech: speech,
	}
	if cfg.DeepgramKey != "" && cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		store, serr := storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		if serr != nil {
			log.Fatalf("storage: %v", serr)
		}
		processor.Backup = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel)
		processor.Store = store
		log.Println("fallback synthesis enabled (deepgram + supabase)")
	}

	var session *gateway.Handler
	if cfg.AssemblyAIKey != "" {
		session = gateway.NewHandler(cfg.AssemblyAIKey, processor)
	}

	e := httpserver.New(processor, session)

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- e.Start(cfg.HTTPAddress)
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = e.Close()
	}
}
