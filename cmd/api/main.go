package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/clipcaptions/internal/api"
	"github.com/bobarin/clipcaptions/internal/config"
	"github.com/bobarin/clipcaptions/internal/db"
	"github.com/bobarin/clipcaptions/internal/queue"
	"github.com/bobarin/clipcaptions/internal/services"
	"github.com/bobarin/clipcaptions/internal/storage"
	"github.com/bobarin/clipcaptions/internal/worker"
)

func main() {
	log.Println("Starting clip captions API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	engineOpts, err := cfg.Engine.Options()
	if err != nil {
		log.Fatalf("Failed to load caption engine settings: %v", err)
	}
	captions := services.NewCaptionService(engineOpts)

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Connected to database")

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	handler := api.NewHandler(database, q, stor, captions)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		var transcriber services.Transcriber
		if cfg.OpenAIKey != "" {
			transcriber = services.NewOpenAIService(cfg.OpenAIKey)
		} else {
			log.Println("OPENAI_API_KEY not set, jobs with audio_path will fail")
		}

		var hooks services.HookSuggester
		if cfg.GeminiKey != "" {
			hookSvc, err := services.NewHookService(context.Background(), cfg.GeminiKey, cfg.GeminiModel)
			if err != nil {
				log.Printf("Hook suggestions disabled: %v", err)
			} else {
				hooks = hookSvc
				log.Printf("Hook suggestions enabled (model: %s)", cfg.GeminiModel)
			}
		}

		w := worker.New(database, q, stor, captions, transcriber, hooks)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
