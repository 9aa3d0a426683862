package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required,notEmpty"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	TranscriptionModel string  `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	SummaryModel       string  `env:"SUMMARY_MODEL" envDefault:"gpt-4"`
	SummaryTemperature float32 `env:"SUMMARY_TEMPERATURE" envDefault:"0.7"`
	SummaryMaxTokens   int     `env:"SUMMARY_MAX_TOKENS" envDefault:"500"`

	// Free-tier gate and chunking policy
	FreeTierLimit            time.Duration `env:"FREE_TIER_LIMIT" envDefault:"60s"`
	MaxTranscriptionFileSize int64         `env:"MAX_TRANSCRIPTION_FILE_SIZE" envDefault:"26214400"`
	ChunkDuration            time.Duration `env:"CHUNK_DURATION" envDefault:"5m"`

	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TempDir     string `env:"TEMP_DIR"`

	// MaxUploadBytes caps the request body. 0 disables the cap.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"268435456"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"2m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// Optional event publishing. Empty broker URL disables MQTT.
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"meetbrief"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"meetbrief"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FreeTierLimit <= 0 {
		return fmt.Errorf("FREE_TIER_LIMIT must be positive, got %s", c.FreeTierLimit)
	}
	if c.ChunkDuration < time.Second {
		return fmt.Errorf("CHUNK_DURATION must be at least 1s, got %s", c.ChunkDuration)
	}
	if c.MaxTranscriptionFileSize <= 0 {
		return fmt.Errorf("MAX_TRANSCRIPTION_FILE_SIZE must be positive, got %d", c.MaxTranscriptionFileSize)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must not be negative, got %d", c.MaxUploadBytes)
	}
	return nil
}

// MQTTEnabled reports whether pipeline events should be published.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBrokerURL != ""
}
