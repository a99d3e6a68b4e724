package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr         string
	WhisperBaseURL     string
	WhisperModel       string
	WhisperDevice      string
	WhisperComputeType string
	WhisperLang        string
	ModelConcurrency   int
	TranslateBaseURL   string
	TranslateAPIKey    string
	TranslateTarget    string
	NormalizeLanguages []string
	AllowedOrigins     []string
	MaxUploadBytes     int64
	RequestTimeout     time.Duration
	TempDir            string
	LogLevel           string
}

type envConfig struct {
	ListenAddr            string `env:"LISTEN_ADDR" envDefault:":8000"`
	WhisperBaseURL        string `env:"WHISPER_BASE_URL" envDefault:"http://127.0.0.1:9000"`
	WhisperModel          string `env:"WHISPER_MODEL" envDefault:"base"`
	WhisperDevice         string `env:"WHISPER_DEVICE" envDefault:"cpu"`
	WhisperComputeType    string `env:"WHISPER_COMPUTE_TYPE" envDefault:"int8"`
	WhisperLang           string `env:"WHISPER_LANG"`
	ModelConcurrency      int    `env:"MODEL_CONCURRENCY" envDefault:"1"`
	TranslateBaseURL      string `env:"TRANSLATE_BASE_URL" envDefault:"http://127.0.0.1:5000"`
	TranslateAPIKey       string `env:"TRANSLATE_API_KEY"`
	TranslateTarget       string `env:"TRANSLATE_TARGET" envDefault:"hi"`
	NormalizeLanguages    string `env:"NORMALIZE_LANGUAGES" envDefault:"hi,ur,unknown"`
	AllowedOrigins        string `env:"ALLOWED_ORIGINS" envDefault:"*"`
	MaxUploadBytes        int64  `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"300"`
	TempDir               string `env:"TEMP_DIR"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:         strings.TrimSpace(raw.ListenAddr),
		WhisperBaseURL:     strings.TrimRight(strings.TrimSpace(raw.WhisperBaseURL), "/"),
		WhisperModel:       strings.TrimSpace(raw.WhisperModel),
		WhisperDevice:      strings.TrimSpace(raw.WhisperDevice),
		WhisperComputeType: strings.TrimSpace(raw.WhisperComputeType),
		WhisperLang:        strings.TrimSpace(raw.WhisperLang),
		ModelConcurrency:   raw.ModelConcurrency,
		TranslateBaseURL:   strings.TrimRight(strings.TrimSpace(raw.TranslateBaseURL), "/"),
		TranslateAPIKey:    strings.TrimSpace(raw.TranslateAPIKey),
		TranslateTarget:    strings.TrimSpace(raw.TranslateTarget),
		NormalizeLanguages: splitList(strings.ToLower(raw.NormalizeLanguages)),
		AllowedOrigins:     splitList(raw.AllowedOrigins),
		MaxUploadBytes:     raw.MaxUploadBytes,
		RequestTimeout:     time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		TempDir:            strings.TrimSpace(raw.TempDir),
		LogLevel:           strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.WhisperBaseURL == "" {
		return errors.New("WHISPER_BASE_URL must not be empty")
	}
	if c.WhisperModel == "" {
		return errors.New("WHISPER_MODEL must not be empty")
	}
	if c.ModelConcurrency <= 0 {
		return errors.New("MODEL_CONCURRENCY must be > 0")
	}
	if c.TranslateBaseURL == "" {
		return errors.New("TRANSLATE_BASE_URL must not be empty")
	}
	if c.TranslateTarget == "" {
		return errors.New("TRANSLATE_TARGET must not be empty")
	}
	if len(c.NormalizeLanguages) == 0 {
		return errors.New("NORMALIZE_LANGUAGES must not be empty")
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("ALLOWED_ORIGINS must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
