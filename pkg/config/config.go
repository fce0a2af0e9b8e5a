package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GoogleApiKey   string        `yaml:"google_api_key"`
	DatabaseURL    string        `yaml:"database_url"`
	RedisURL       string        `yaml:"redis_url"`
	ReasoningModel string        `yaml:"reasoning_model"`
	FastModel      string        `yaml:"fast_model"`
	TTSModel       string        `yaml:"tts_model"`
	TTSVoice       string        `yaml:"tts_voice"`
	Port           string        `yaml:"port"`
	OutputDir      string        `yaml:"output_dir"`
	PdflatexPath   string        `yaml:"pdflatex_path"`
	LogFile        string        `yaml:"log_file"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	MistralApiKey  string        `yaml:"mistral_api_key"`
}

func Default() *Config {
	return &Config{
		ReasoningModel: "gemini-3-pro-preview",
		FastModel:      "gemini-3-flash-preview",
		TTSModel:       "gemini-2.5-flash-preview-tts",
		TTSVoice:       "Kore",
		Port:           "8081",
		OutputDir:      "output",
		PdflatexPath:   "pdflatex",
		SessionTTL:     24 * time.Hour,
		ChunkSize:      1000,
		ChunkOverlap:   200,
	}
}

// Load reads defaults, then the YAML file named by RESEARCH_CONFIG, then the
// environment (including a .env file in the working directory).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("RESEARCH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.GoogleApiKey = getEnv("GOOGLE_API_KEY", c.GoogleApiKey)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.ReasoningModel = getEnv("REASONING_MODEL", c.ReasoningModel)
	c.FastModel = getEnv("FAST_MODEL", c.FastModel)
	c.TTSModel = getEnv("TTS_MODEL", c.TTSModel)
	c.TTSVoice = getEnv("TTS_VOICE", c.TTSVoice)
	c.Port = getEnv("PORT", c.Port)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.PdflatexPath = getEnv("PDFLATEX_PATH", c.PdflatexPath)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.SessionTTL = getEnvAsDuration("SESSION_TTL", c.SessionTTL)
	c.ChunkSize = getEnvAsInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.MistralApiKey = getEnv("MISTRAL_API_KEY", c.MistralApiKey)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
