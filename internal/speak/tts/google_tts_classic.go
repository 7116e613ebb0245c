package tts

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// Google rejects inputs over 5000 bytes; stay a little under.
const googleChunkLimit = 4800

type GoogleClassicTTSEngine struct {
	client       *texttospeech.Client
	ctx          context.Context
	mu           sync.Mutex
	voice        string
	speed        float64
	volume       float64
	cacheRootDir string

	playing    atomic.Bool
	ctrl       *beep.Ctrl
	release    func()
	sampleRate beep.SampleRate
}

func newGoogleClassicTTSEngine(config Config) (*GoogleClassicTTSEngine, error) {
	cacheDir := config.CachePath
	if cacheDir == "" {
		cacheDir = defaultAudioCacheDir()
	}

	ctx := context.Background()
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	speed := config.Speed
	if speed == 0 {
		speed = 1.0
	}

	return &GoogleClassicTTSEngine{
		client:       client,
		ctx:          ctx,
		voice:        config.Voice,
		speed:        speed,
		cacheRootDir: cacheDir,
	}, nil
}

func defaultAudioCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "speakgenie", "tts")
	}
	return filepath.Join("cache", "tts")
}

// voiceFor returns the configured voice when it belongs to lang, otherwise
// an empty name so Google picks its default voice for the language.
func voiceFor(voice, lang string) string {
	if voice == "" || voice == "default" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(voice), strings.ToLower(lang)) {
		return voice
	}
	return ""
}

func (g *GoogleClassicTTSEngine) chunkPath(lang, hash string, i int) string {
	return filepath.Join(g.cacheRootDir, "google_classic", lang, fmt.Sprintf("%s_%d.mp3", hash, i))
}

func (g *GoogleClassicTTSEngine) Speak(text, lang string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(g.cacheRootDir, "google_classic", lang), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	voice := voiceFor(g.voice, lang)
	hash := md5Sum(lang + "|" + voice + "|" + text)[:12]
	chunks := splitIntoChunks(text, googleChunkLimit)

	for i, chunk := range chunks {
		path := g.chunkPath(lang, hash, i)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := g.synthesize(chunk, lang, voice, path); err != nil {
			return fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}
		logrus.WithFields(logrus.Fields{"chunk": i + 1, "of": len(chunks), "file": path}).Debug("Cached audio chunk")
	}

	return g.play(lang, hash, len(chunks))
}

func (g *GoogleClassicTTSEngine) synthesize(text, lang, voice, path string) error {
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	// Chirp voices reject speakingRate and gain
	if !strings.Contains(strings.ToLower(voice), "chirp") {
		audioCfg.SpeakingRate = g.speed
		audioCfg.VolumeGainDb = g.volume
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voice,
		},
		AudioConfig: audioCfg,
	}

	ctx, cancel := context.WithTimeout(g.ctx, 30*time.Second)
	defer cancel()

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, resp.AudioContent, 0644); err != nil {
		return fmt.Errorf("failed to write MP3 to %s: %w", path, err)
	}
	return nil
}

// play queues every cached chunk as one sequence on the speaker.
func (g *GoogleClassicTTSEngine) play(lang, hash string, chunks int) error {
	g.stopLocked()

	var (
		streamers []beep.Streamer
		closers   []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	for i := 0; i < chunks; i++ {
		path := g.chunkPath(lang, hash, i)
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return fmt.Errorf("failed to open cached MP3 %s: %w", path, err)
		}

		streamer, format, err := mp3.Decode(f)
		if err != nil {
			f.Close()
			closeAll()
			return fmt.Errorf("failed to decode MP3 %s: %w", path, err)
		}
		closers = append(closers, streamer)

		if g.sampleRate == 0 {
			if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
				closeAll()
				return err
			}
			g.sampleRate = format.SampleRate
		}

		if format.SampleRate != g.sampleRate {
			streamers = append(streamers, beep.Resample(4, format.SampleRate, g.sampleRate, streamer))
		} else {
			streamers = append(streamers, streamer)
		}
	}

	release := sync.OnceFunc(closeAll)
	g.release = release
	g.ctrl = &beep.Ctrl{Streamer: beep.Seq(streamers...)}
	g.playing.Store(true)

	speaker.Play(beep.Seq(g.ctrl, beep.Callback(func() {
		g.playing.Store(false)
		release()
	})))

	return nil
}

func (g *GoogleClassicTTSEngine) SetVoice(voice string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voice = voice
	return nil
}

func (g *GoogleClassicTTSEngine) SetSpeed(speed float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speed = speed
	return nil
}

// SetVolume sets the gain in dB.
func (g *GoogleClassicTTSEngine) SetVolume(volume float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.volume = volume
	return nil
}

func (g *GoogleClassicTTSEngine) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	return nil
}

func (g *GoogleClassicTTSEngine) stopLocked() {
	if g.ctrl != nil {
		speaker.Lock()
		g.ctrl.Streamer = nil
		speaker.Unlock()
		g.ctrl = nil
	}
	if g.release != nil {
		g.release()
		g.release = nil
	}
	g.playing.Store(false)
}

func (g *GoogleClassicTTSEngine) IsPlaying() bool {
	return g.playing.Load()
}

func (g *GoogleClassicTTSEngine) GetAvailableVoices(lang string) ([]string, error) {
	resp, err := g.client.ListVoices(g.ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: lang})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// GetCacheStats returns cache statistics for the current engine
func (g *GoogleClassicTTSEngine) GetCacheStats() (CacheStats, error) {
	stats := CacheStats{Directory: g.cacheRootDir}

	var totalSize int64
	err := filepath.Walk(g.cacheRootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // keep walking
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			stats.CachedFiles++
			totalSize += info.Size()
		}
		return nil
	})

	stats.TotalSizeMB = float64(totalSize) / (1024 * 1024)
	return stats, err
}

// ClearCache removes all cached files
func (g *GoogleClassicTTSEngine) ClearCache() error {
	return os.RemoveAll(g.cacheRootDir)
}

// ClearLanguageCache removes cached audio for one language
func (g *GoogleClassicTTSEngine) ClearLanguageCache(lang string) error {
	return os.RemoveAll(filepath.Join(g.cacheRootDir, "google_classic", lang))
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
