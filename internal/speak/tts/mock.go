package tts

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Utterance is one Speak call seen by the mock engine.
type Utterance struct {
	Text string
	Lang string
}

// MockTTSEngine prints instead of speaking. It doubles as the text-only
// engine on machines without a synthesizer.
type MockTTSEngine struct {
	mu      sync.Mutex
	out     io.Writer
	speed   float64
	volume  float64
	voice   string
	stops   int
	spoken  []Utterance
	playing bool
}

func NewMockTTSEngine(c Config) *MockTTSEngine {
	return &MockTTSEngine{
		out:    os.Stdout,
		speed:  c.Speed,
		volume: c.Volume,
		voice:  "default",
	}
}

// SetOutput redirects the printed lines; nil silences them.
func (m *MockTTSEngine) SetOutput(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = w
}

func (m *MockTTSEngine) Speak(text, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.spoken = append(m.spoken, Utterance{Text: text, Lang: lang})
	if m.out != nil {
		color.New(color.FgYellow).Fprintf(m.out, "🔊 (%s) %s\n", lang, text)
	}
	return nil
}

// Spoken returns every utterance so far.
func (m *MockTTSEngine) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

// Stops counts Stop calls.
func (m *MockTTSEngine) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *MockTTSEngine) GetAvailableVoices(string) ([]string, error) {
	return []string{"mock-voice"}, nil
}

func (m *MockTTSEngine) SetVoice(voice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice = voice
	return nil
}

func (m *MockTTSEngine) SetSpeed(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = speed
	return nil
}

func (m *MockTTSEngine) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

func (m *MockTTSEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.playing = false
	return nil
}

func (m *MockTTSEngine) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}
