package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	OpenAIAPIKey    string `env:"OPENAI_API_KEY,required,notEmpty"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	CompletionModel string `env:"COMPLETION_MODEL"  envDefault:"gpt-3.5-turbo"`
	EmbeddingModel  string `env:"EMBEDDING_MODEL"   envDefault:"text-embedding-3-small"`

	MaxModelContext    int     `env:"MAX_MODEL_CONTEXT"   envDefault:"4096"`
	TokenSafetyBuffer  int     `env:"TOKEN_SAFETY_BUFFER" envDefault:"100"`
	MinOutputTokens    int     `env:"MIN_OUTPUT_TOKENS"   envDefault:"200"`
	Temperature        float64 `env:"TEMPERATURE"         envDefault:"0.5"`
	ReferenceThreshold float64 `env:"REFERENCE_THRESHOLD" envDefault:"0.7"`

	// TokenizerFiles maps extra model names to Hugging Face tokenizer.json files.
	TokenizerFiles map[string]string `env:"TOKENIZER_FILES"`

	HTTPAddr        string        `env:"HTTP_ADDR"         envDefault:"0.0.0.0:8000"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"   envDefault:"2m"`
	HealthCheckSpec string        `env:"HEALTH_CHECK_SPEC" envDefault:"*/5 * * * *"`

	TelegramToken string  `env:"TELEGRAM_TOKEN"`
	AllowedUsers  []int64 `env:"ALLOWED_USERS"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.MaxModelContext <= 0:
		return fmt.Errorf("MAX_MODEL_CONTEXT must be positive (got %d)", c.MaxModelContext)
	case c.TokenSafetyBuffer < 0:
		return fmt.Errorf("TOKEN_SAFETY_BUFFER must not be negative (got %d)", c.TokenSafetyBuffer)
	case c.MinOutputTokens <= 0:
		return fmt.Errorf("MIN_OUTPUT_TOKENS must be positive (got %d)", c.MinOutputTokens)
	case c.ReferenceThreshold < -1 || c.ReferenceThreshold > 1:
		return fmt.Errorf("REFERENCE_THRESHOLD must be within [-1, 1] (got %v)", c.ReferenceThreshold)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("REQUEST_TIMEOUT must be positive (got %s)", c.RequestTimeout)
	}
	return nil
}
