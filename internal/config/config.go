package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// placeholderCredential keeps the pool non-empty so the service can boot
// and report auth errors per request instead of refusing to start.
const placeholderCredential = "missing-gemini-api-key"

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	GatewayLogPath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	BodyLimitMB        int
}

type DatabaseConfig struct {
	Connection string // empty disables answer history
}

type APIKeys struct {
	Gemini    []string
	Jina      string
	JWTSecret string // empty disables auth on the rag routes
}

type AIConfig struct {
	LLMProvider        string // "gemini" or "ollama"
	GeminiBaseURL      string
	FlashModel         string
	ProModel           string
	JudgeModel         string
	OllamaBaseURL      string
	OllamaModel        string
	SimilarityProvider string // "jina" or "siglip"
	SigLIPURL          string
}

type PipelineConfig struct {
	MaxCorrectionAttempts int
	WindowSeconds         float64
	CacheTTL              time.Duration
	GatewayMaxAttempts    int
	GatewayBaseDelay      time.Duration
	AbstractUpper         float64
	AbstractLower         float64
	PhotoUpper            float64
	PhotoLower            float64
	TranscriptLanguages   []string
	TranscriptTries       int
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	keys := getEnvAsList("GEMINI_API_KEYS", nil)
	if len(keys) == 0 {
		keys = getEnvAsList("GOOGLE_GEMINI_API_KEY", nil)
	}
	if len(keys) == 0 {
		log.Println("Warn: no GEMINI_API_KEYS configured, using placeholder credential")
		keys = []string{placeholderCredential}
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			GatewayLogPath:     getEnv("GATEWAY_LOG_PATH", "logs/llm_gateway.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 20),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			Gemini:    keys,
			Jina:      getEnv("JINA_API_KEY", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "gemini"),
			GeminiBaseURL:      getEnv("GEMINI_BASE_URL", ""),
			FlashModel:         getEnv("MODEL_FLASH", "gemini-2.5-flash"),
			ProModel:           getEnv("MODEL_PRO", "gemini-2.5-pro"),
			JudgeModel:         getEnv("MODEL_JUDGE", "gemini-2.5-flash"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:        getEnv("OLLAMA_MODEL", "llava"),
			SimilarityProvider: getEnv("SIMILARITY_PROVIDER", "jina"),
			SigLIPURL:          getEnv("SIGLIP_URL", "http://localhost:8100"),
		},
		Pipeline: PipelineConfig{
			MaxCorrectionAttempts: getEnvAsInt("MAX_CORRECTION_ATTEMPTS", 3),
			WindowSeconds:         getEnvAsFloat("TRANSCRIPT_WINDOW_SECONDS", 120),
			CacheTTL:              time.Duration(getEnvAsInt("IMAGE_CACHE_TTL", 600)) * time.Second,
			GatewayMaxAttempts:    getEnvAsInt("GATEWAY_MAX_ATTEMPTS", 4),
			GatewayBaseDelay:      time.Duration(getEnvAsInt("GATEWAY_BASE_DELAY_MS", 1000)) * time.Millisecond,
			AbstractUpper:         getEnvAsFloat("THRESHOLD_ABSTRACT_UPPER", 0.50),
			AbstractLower:         getEnvAsFloat("THRESHOLD_ABSTRACT_LOWER", 0.20),
			PhotoUpper:            getEnvAsFloat("THRESHOLD_PHOTO_UPPER", 0.75),
			PhotoLower:            getEnvAsFloat("THRESHOLD_PHOTO_LOWER", 0.40),
			TranscriptLanguages:   getEnvAsList("TRANSCRIPT_LANGUAGES", []string{"en"}),
			TranscriptTries:       getEnvAsInt("TRANSCRIPT_FETCH_TRIES", 4),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
