package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          int
	DataPath      string
	DBPath        string
	JWTSecret     string
	AdminUsername string
	AdminPassword string
	CORSOrigins   []string

	// Transcription
	OpenAIKey    string
	PreferRemote bool
	WhisperBin   string
	WhisperModel string

	// Media tooling
	YTDLPBin   string
	FFmpegBin  string
	FFprobeBin string

	// Lifecycle tuning
	WorkerLimit   int
	JobTimeout    time.Duration
	SweepInterval time.Duration
	SweepBackoff  time.Duration
}

func Load() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))
	dataPath := getEnv("DATA_PATH", "/data")

	// JWT secret: require explicit setting or generate random
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatalf("Failed to generate random JWT secret: %v", err)
		}
		jwtSecret = hex.EncodeToString(b)
		log.Println("WARNING: JWT_SECRET not set, using random secret. Sessions will not survive restarts. Set JWT_SECRET env var for persistent sessions.")
	}

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		corsOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	workerLimit, _ := strconv.Atoi(getEnv("WORKER_LIMIT", "2"))
	if workerLimit < 1 {
		workerLimit = 1
	}

	return &Config{
		Port:          port,
		DataPath:      dataPath,
		DBPath:        getEnv("DB_PATH", dataPath+"/captions.db"),
		JWTSecret:     jwtSecret,
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
		CORSOrigins:   corsOrigins,

		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		PreferRemote: getEnv("PREFER_REMOTE", "true") == "true",
		WhisperBin:   getEnv("WHISPER_BIN", "whisper-cli"),
		WhisperModel: getEnv("WHISPER_MODEL", dataPath+"/models/ggml-base.bin"),

		YTDLPBin:   getEnv("YTDLP_BIN", "yt-dlp"),
		FFmpegBin:  getEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin: getEnv("FFPROBE_BIN", "ffprobe"),

		WorkerLimit:   workerLimit,
		JobTimeout:    getDuration("JOB_TIMEOUT", 300*time.Second),
		SweepInterval: getDuration("SWEEP_INTERVAL", 5*time.Second),
		SweepBackoff:  getDuration("SWEEP_BACKOFF", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("WARNING: invalid duration for %s, falling back to %s", key, fallback)
	}
	return fallback
}
