package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	Port int `env:"PORT" envDefault:"3000"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Speech synthesis; leaving OPENAI_API_KEY empty or setting
	// TTS_DISABLED turns the TTS endpoint into a 204 no-op.
	TTSDisabled bool   `env:"TTS_DISABLED"`
	TTSModel    string `env:"TTS_MODEL" envDefault:"tts-1"`
	TTSVoice    string `env:"TTS_VOICE" envDefault:"alloy"`

	// Storage
	EventLogPath string `env:"EVENT_LOG_PATH" envDefault:"logs/events.csv"`
	QALogPath    string `env:"QA_LOG_PATH" envDefault:"logs/qa.csv"`
	MaxFieldLen  int    `env:"MAX_FIELD_LEN" envDefault:"4000"`

	// Mirroring; leaving all of these empty silently disables it
	WebhookURL            string `env:"WEBHOOK_URL"`
	GoogleCredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
	GoogleRefreshToken    string `env:"GOOGLE_REFRESH_TOKEN"`
	SheetID               string `env:"SHEET_ID"`
	SheetRange            string `env:"SHEET_RANGE" envDefault:"Log!A1"`

	// Daily report
	ReportCron     string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
	ReportDisabled bool   `env:"REPORT_DISABLED"`

	// Browser client
	StaticDir string `env:"STATIC_DIR" envDefault:"web"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
