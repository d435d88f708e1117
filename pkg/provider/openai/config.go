package openai

import "time"

type Config struct {
	APIKey         string        `env:"OPENAI_API_KEY"`
	BaseURL        string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	RequestTimeout time.Duration `env:"OPENAI_REQUEST_TIMEOUT" envDefault:"60s"`
	DefaultModel   string        `env:"OPENAI_DEFAULT_MODEL" envDefault:"gpt-4o"`
	MaxTokens      int           `env:"OPENAI_MAX_TOKENS" envDefault:"1000"`
	Temperature    float64       `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	SystemPrompt   string        `env:"OPENAI_SYSTEM_PROMPT" envDefault:"You are a helpful and friendly AI assistant."`
}
