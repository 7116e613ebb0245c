// Package tts speaks Genie's lines aloud.
package tts

// Config selects and tunes an engine.
type Config struct {
	Type      string
	Speed     float64
	Volume    float64
	Voice     string
	CachePath string
}

// Engine interface for text-to-speech functionality
type Engine interface {
	// Speak starts saying text in the given BCP 47 language and returns once
	// playback has started.
	Speak(text, lang string) error
	SetVoice(voice string) error
	SetSpeed(speed float64) error
	SetVolume(volume float64) error
	Stop() error
	IsPlaying() bool
	GetAvailableVoices(lang string) ([]string, error)
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	GetCacheStats() (CacheStats, error)
	ClearCache() error
}

// CacheStats summarizes an engine's audio cache.
type CacheStats struct {
	Directory   string  `json:"directory"`
	CachedFiles int64   `json:"cached_files"`
	TotalSizeMB float64 `json:"total_size_mb"`
}
