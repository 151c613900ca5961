package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (Whisper word timestamps for jobs submitted with audio)
	OpenAIKey string

	// Gemini (hook title suggestions)
	GeminiKey   string
	GeminiModel string

	// Worker
	MaxConcurrentJobs int

	Engine Engine
}

// Engine holds the caption engine settings. It is the only part of the
// configuration the CLI needs.
type Engine struct {
	Title            string
	MaxWordsPerGroup int
	MaxGapFillMs     int
	Terminators      string
	HookDuration     float64
	CTADuration      float64
	Uppercase        bool
	PowerWords       []string
	StylePresetPath  string
	BatchConcurrency int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "clip-captions"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
		Engine:                loadEngine(),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	if cfg.MaxConcurrentJobs <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be positive, got %d", cfg.MaxConcurrentJobs)
	}

	return cfg, nil
}

// LoadEngine reads only the engine settings. Nothing is required.
func LoadEngine() Engine {
	_ = godotenv.Load()
	return loadEngine()
}

func loadEngine() Engine {
	return Engine{
		Title:            getEnv("CAPTION_TITLE", subtitles.DefaultTitle),
		MaxWordsPerGroup: getEnvInt("CAPTION_MAX_WORDS", subtitles.DefaultMaxWordsPerGroup),
		MaxGapFillMs:     getEnvInt("CAPTION_MAX_GAP_MS", subtitles.DefaultMaxGapFillMs),
		Terminators:      getEnv("CAPTION_TERMINATORS", subtitles.DefaultSentenceTerminators),
		HookDuration:     getEnvFloat("HOOK_DURATION_SEC", subtitles.DefaultHookDuration),
		CTADuration:      getEnvFloat("CTA_DURATION_SEC", subtitles.DefaultCallToActionDuration),
		Uppercase:        getEnvBool("CAPTION_UPPERCASE", false),
		PowerWords:       getEnvList("CAPTION_POWER_WORDS"),
		StylePresetPath:  getEnv("STYLE_PRESET_PATH", ""),
		BatchConcurrency: getEnvInt("CAPTION_BATCH_CONCURRENCY", 4),
	}
}

// Options converts the engine settings into render options. The clip duration
// and overlay texts are per clip and left for the caller.
func (e Engine) Options() (subtitles.Options, error) {
	opts := subtitles.DefaultOptions()
	opts.Title = e.Title
	opts.Grouping = subtitles.GroupOptions{MaxWords: e.MaxWordsPerGroup, Terminators: e.Terminators}
	if e.MaxGapFillMs < 0 {
		return opts, fmt.Errorf("CAPTION_MAX_GAP_MS must not be negative, got %d", e.MaxGapFillMs)
	}
	opts.Timing = subtitles.TimingOptions{MaxGapFillMs: e.MaxGapFillMs}
	opts.Text = subtitles.TextOptions{Uppercase: e.Uppercase, PowerWords: e.PowerWords}
	opts.Overlays.Hook.Duration = e.HookDuration
	opts.Overlays.CallToAction.Duration = e.CTADuration

	if e.StylePresetPath != "" {
		preset, err := LoadStylePreset(e.StylePresetPath)
		if err != nil {
			return opts, err
		}
		style, err := preset.StyleConfig()
		if err != nil {
			return opts, fmt.Errorf("invalid style preset %s: %w", e.StylePresetPath, err)
		}
		opts.Style = style
	}

	if _, err := subtitles.BuildStyles(opts.Style); err != nil {
		return opts, fmt.Errorf("invalid style configuration: %w", err)
	}
	return opts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
