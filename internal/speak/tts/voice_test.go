package tts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakgenie/internal/domain/language"
)

func newSilentMock() *MockTTSEngine {
	m := NewMockTTSEngine(Config{Speed: 1, Volume: 1})
	m.SetOutput(nil)
	return m
}

func TestVoiceSaySpeaksSupportedLanguages(t *testing.T) {
	mock := newSilentMock()
	v := NewVoice(mock, nil)

	assert.True(t, v.Say("Good morning!", language.English))
	assert.True(t, v.Say("नमस्ते", language.Hindi))

	assert.Equal(t, []Utterance{
		{Text: "Good morning!", Lang: "en-US"},
		{Text: "नमस्ते", Lang: "hi-IN"},
	}, mock.Spoken())
	assert.Equal(t, 2, mock.Stops(), "each utterance interrupts the previous one")
}

func TestVoiceSayDropsTextOnlyLanguage(t *testing.T) {
	mock := newSilentMock()
	v := NewVoice(mock, language.DefaultPolicy())

	assert.False(t, v.Say("నమస్కారం", language.Telugu))
	assert.Empty(t, mock.Spoken())
	assert.Zero(t, mock.Stops())
}

func TestVoiceSayIgnoresEmptyText(t *testing.T) {
	mock := newSilentMock()
	v := NewVoice(mock, nil)

	assert.False(t, v.Say("", language.English))
	assert.Empty(t, mock.Spoken())
}

type failingEngine struct {
	*MockTTSEngine
}

func (failingEngine) Speak(string, string) error { return errors.New("no audio device") }

func TestVoiceSayReportsEngineFailure(t *testing.T) {
	v := NewVoice(failingEngine{newSilentMock()}, nil)
	assert.False(t, v.Say("Hello", language.English))
}

func TestVoiceWaitIdle(t *testing.T) {
	v := NewVoice(newSilentMock(), nil)
	require.True(t, v.WaitIdle(10*time.Millisecond))
}
