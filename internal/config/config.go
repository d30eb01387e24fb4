// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime option for a grokdrive run. It is constructed once
// at startup and passed by reference into every component; nothing reads viper
// (or any other ambient state) after this struct is built.
type Config struct {
	// ChromePort is the remote debugging port of the already-running Chrome
	// instance the harness attaches to.
	ChromePort int `mapstructure:"chrome_port" yaml:"chrome_port"`

	// MaxRetries is the shared retry budget: CDP connection attempts, per-step
	// input retries and the per-prompt outer retry loop all use it.
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	// AudioWait is the settle period after clicking the voice button, before
	// the UI is probed for activation errors.
	AudioWait time.Duration `mapstructure:"audio_wait_seconds" yaml:"audio_wait_seconds"`
	// TranscriptionWait is how long the harness waits after audio playback for
	// the page to finish transcribing the injected speech.
	TranscriptionWait   time.Duration `mapstructure:"transcription_wait_seconds" yaml:"transcription_wait_seconds"`
	NewConversationWait time.Duration `mapstructure:"new_conversation_wait" yaml:"new_conversation_wait"`

	// TTSVoice is the synthesis model identifier. TTSRate is a signed
	// percentage string ("+10%") applied as a playback speed adjustment.
	TTSVoice string `mapstructure:"tts_voice" yaml:"tts_voice"`
	TTSRate  string `mapstructure:"tts_rate" yaml:"tts_rate"`

	// Response stabilization tuning.
	MinResponseLength     int           `mapstructure:"min_response_length" yaml:"min_response_length"`
	RequiredStableChecks  int           `mapstructure:"required_stable_checks" yaml:"required_stable_checks"`
	StabilizationInterval time.Duration `mapstructure:"stabilization_check_interval" yaml:"stabilization_check_interval"`
	MaxResponseChars      int           `mapstructure:"max_response_chars" yaml:"max_response_chars"`
	MaxWaitTime           time.Duration `mapstructure:"max_wait_time" yaml:"max_wait_time"`
	RateLimitCooldown     time.Duration `mapstructure:"rate_limit_cooldown" yaml:"rate_limit_cooldown"`

	// ProgressBarLength is cosmetic.
	ProgressBarLength int `mapstructure:"progress_bar_length" yaml:"progress_bar_length"`

	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults initializes default values for every recognized option. A missing
// config file is not an error: the harness runs on these defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("chrome_port", 9222)

	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay", "5s")

	v.SetDefault("audio_wait_seconds", "3s")
	v.SetDefault("transcription_wait_seconds", "10s")
	v.SetDefault("new_conversation_wait", "3s")

	v.SetDefault("tts_voice", "aura-asteria-en")
	v.SetDefault("tts_rate", "+0%")

	v.SetDefault("min_response_length", 10)
	v.SetDefault("required_stable_checks", 3)
	v.SetDefault("stabilization_check_interval", "2s")
	v.SetDefault("max_response_chars", 5000)
	v.SetDefault("max_wait_time", "120s")
	v.SetDefault("rate_limit_cooldown", "30s")

	v.SetDefault("progress_bar_length", 30)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "grokdrive")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults must always unmarshal and validate.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// NewConfigFromViper unmarshals and validates a configuration from a viper
// instance that has already had defaults, file and env sources applied.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations that would make the run loop misbehave.
func (c *Config) Validate() error {
	var problems []string

	if c.ChromePort <= 0 || c.ChromePort > 65535 {
		problems = append(problems, "chrome_port must be a valid TCP port")
	}
	if c.MaxRetries < 1 {
		problems = append(problems, "max_retries must be a positive integer")
	}
	if c.RetryDelay < 0 {
		problems = append(problems, "retry_delay must not be negative")
	}
	if c.MinResponseLength < 0 {
		problems = append(problems, "min_response_length must not be negative")
	}
	if c.RequiredStableChecks < 1 {
		problems = append(problems, "required_stable_checks must be a positive integer")
	}
	if c.StabilizationInterval <= 0 {
		problems = append(problems, "stabilization_check_interval must be positive")
	}
	if c.MaxResponseChars < 1 {
		problems = append(problems, "max_response_chars must be a positive integer")
	}
	if c.MaxWaitTime <= 0 {
		problems = append(problems, "max_wait_time must be positive")
	}
	if c.TTSVoice == "" {
		problems = append(problems, "tts_voice must not be empty")
	}
	if _, err := ParseRatePercent(c.TTSRate); err != nil {
		problems = append(problems, fmt.Sprintf("tts_rate: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseRatePercent converts a signed percentage string such as "+10%", "-5%" or
// "+0%" into a playback speed multiplier (1.10, 0.95, 1.0). The format matches
// the rate syntax of common TTS services.
func ParseRatePercent(rate string) (float64, error) {
	s := strings.TrimSpace(rate)
	if s == "" {
		return 1.0, nil
	}
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("rate %q must end with %%", rate)
	}
	s = strings.TrimSuffix(s, "%")

	sign := 1.0
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		sign = -1.0
		s = s[1:]
	}

	var pct float64
	if _, err := fmt.Sscanf(s, "%f", &pct); err != nil {
		return 0, fmt.Errorf("rate %q is not a percentage: %w", rate, err)
	}
	if pct < 0 {
		return 0, fmt.Errorf("rate %q has a doubled sign", rate)
	}

	mult := 1.0 + sign*pct/100.0
	if mult <= 0 {
		return 0, fmt.Errorf("rate %q would stop playback entirely", rate)
	}
	return mult, nil
}
