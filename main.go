package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caption-service/backend/internal/api"
	"github.com/caption-service/backend/internal/auth"
	"github.com/caption-service/backend/internal/config"
	"github.com/caption-service/backend/internal/db"
	"github.com/caption-service/backend/internal/media"
	"github.com/caption-service/backend/internal/pipeline"
	"github.com/caption-service/backend/internal/task"
	"github.com/caption-service/backend/internal/transcribe"
)

func main() {
	cfg := config.Load()

	// Ensure data directory exists
	os.MkdirAll(cfg.DataPath, 0755)

	// Initialize database
	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Ensure admin user exists
	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	log.Printf("Admin user ensured: %s", cfg.AdminUsername)

	// Transcription engines: remote is optional, local loads lazily
	var remote transcribe.Transcriber
	if cfg.OpenAIKey != "" {
		remote = transcribe.NewOpenAIClient(cfg.OpenAIKey)
		log.Printf("[whisper] remote engine registered")
	} else {
		log.Printf("[whisper] no OPENAI_API_KEY, remote path disabled")
	}
	local := transcribe.NewLocalWhisper(cfg.WhisperBin, cfg.WhisperModel)
	engine := transcribe.NewEngine(remote, local, cfg.PreferRemote)

	// Pipeline
	fetcher := media.NewFetcher(cfg.YTDLPBin)
	encoder := media.NewEncoder(cfg.FFmpegBin)
	runner := pipeline.NewRunner(fetcher, encoder, engine, cfg.FFprobeBin, os.TempDir())

	// Task lifecycle: push workers plus the background sweep
	manager := task.NewManager(database, runner, cfg.WorkerLimit,
		cfg.JobTimeout, cfg.SweepInterval, cfg.SweepBackoff)
	manager.Start()
	defer manager.Stop()

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Create router
	router := api.NewRouter(database, jwtService, cfg, manager)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting server on %s", addr)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		manager.Stop()
		database.Close()
		os.Exit(0)
	}()

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
