// Package config loads SpeakGenie settings from speakgenie.yaml, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Language string         `mapstructure:"language"`
	TTS      TTSConfig      `mapstructure:"tts"`
	STT      STTConfig      `mapstructure:"stt"`
	Tutor    TutorConfig    `mapstructure:"tutor"`
	Roleplay RoleplayConfig `mapstructure:"roleplay"`
	Library  LibraryConfig  `mapstructure:"library"`
	Server   ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TTSConfig struct {
	Type      string  `mapstructure:"type"`
	Voice     string  `mapstructure:"voice"`
	Speed     float64 `mapstructure:"speed"`
	Volume    float64 `mapstructure:"volume"`
	CachePath string  `mapstructure:"cache_path"`
}

// STTConfig picks a listener. Settings are listener specific and decoded
// with DecodeSettings.
type STTConfig struct {
	Type     string         `mapstructure:"type"`
	Settings map[string]any `mapstructure:"settings"`
}

type TutorConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RoleplayConfig struct {
	AdvanceDelay     time.Duration `mapstructure:"advance_delay"`
	NarrationMin     time.Duration `mapstructure:"narration_min"`
	NarrationPerRune time.Duration `mapstructure:"narration_per_rune"`
	AdvisoryDuration time.Duration `mapstructure:"advisory_duration"`
}

type LibraryConfig struct {
	CatalogFile  string        `mapstructure:"catalog_file"`
	PackURL      string        `mapstructure:"pack_url"`
	PackCacheDir string        `mapstructure:"pack_cache_dir"`
	PackMaxAge   time.Duration `mapstructure:"pack_max_age"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func SetDefaults() {
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("language", "en-US")

	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.voice", "default")
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.volume", 0.8)
	viper.SetDefault("tts.cache_path", "")

	viper.SetDefault("stt.type", "console")
	viper.SetDefault("stt.settings", map[string]any{})

	viper.SetDefault("tutor.provider", "gemini")
	viper.SetDefault("tutor.model", "gemini-2.0-flash")
	viper.SetDefault("tutor.api_key", "")
	viper.SetDefault("tutor.base_url", "")
	viper.SetDefault("tutor.temperature", 0.7)
	viper.SetDefault("tutor.max_tokens", 256)
	viper.SetDefault("tutor.timeout", "30s")

	viper.SetDefault("roleplay.advance_delay", "2s")
	viper.SetDefault("roleplay.narration_min", "2s")
	viper.SetDefault("roleplay.narration_per_rune", "60ms")
	viper.SetDefault("roleplay.advisory_duration", "5s")

	viper.SetDefault("library.catalog_file", "")
	viper.SetDefault("library.pack_url", "")
	viper.SetDefault("library.pack_cache_dir", "")
	viper.SetDefault("library.pack_max_age", "24h")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.allowed_origins", []string{})
}

// Init registers defaults, environment bindings and reads the config file.
// An explicit file must exist; the default search path may be empty.
func Init(file string) error {
	SetDefaults()

	viper.SetEnvPrefix("SPEAKGENIE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// well-known provider variables
	_ = viper.BindEnv("tutor.api_key", "SPEAKGENIE_TUTOR_API_KEY", "GEMINI_API_KEY")
	_ = viper.BindEnv("stt.settings.api_key", "SPEAKGENIE_STT_SETTINGS_API_KEY", "DEEPGRAM_API_KEY")

	if file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return nil
	}

	viper.SetConfigName("speakgenie")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.speakgenie")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logrus.Debug("No config file found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	logrus.WithField("file", viper.ConfigFileUsed()).Debug("Loaded config")
	return nil
}

// Load returns the current settings as a typed Config.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.STT.Settings == nil {
		cfg.STT.Settings = map[string]any{}
	}
	return cfg, nil
}

// SetupLogging applies the log level and format to the standard logrus
// logger.
func SetupLogging(c LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	logrus.SetLevel(level)

	if c.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
