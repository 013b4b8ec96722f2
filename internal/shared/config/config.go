package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	LLMProvider     string
	LLMModel        string
	OCREngine       string
	NaverOCRURL     string
	NaverOCRSecret  string
	PaddleOCRURL    string
	RAGDBPath       string
	DatabaseURL     string
	Env             string
	BatchRetention  time.Duration
	JanitorInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./uploads"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		LLMModel:        getEnv("LLM_MODEL", ""),
		OCREngine:       normalizeOCREngine(getEnv("OCR_ENGINE", "naver")),
		NaverOCRURL:     getEnv("NAVER_OCR_URL", ""),
		NaverOCRSecret:  getEnv("NAVER_OCR_SECRET", ""),
		PaddleOCRURL:    getEnv("PADDLE_OCR_URL", "http://localhost:8868/predict/ocr_system"),
		RAGDBPath:       getEnv("RAG_DB_PATH", "./data/regulations.db"),
		DatabaseURL:     dbURL,
		Env:             env,
		BatchRetention:  getEnvDuration("BATCH_RETENTION", 24*time.Hour),
		JanitorInterval: getEnvDuration("JANITOR_INTERVAL", time.Hour),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("config %s invalid duration %q, using default", key, raw)
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeOCREngine(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paddle", "paddleocr":
		return "paddle"
	default:
		return "naver"
	}
}
