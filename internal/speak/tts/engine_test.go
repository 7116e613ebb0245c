package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineMock(t *testing.T) {
	engine, err := NewEngine(Config{Type: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &MockTTSEngine{}, engine)
}

func TestNewEngineUnknownType(t *testing.T) {
	_, err := NewEngine(Config{Type: "sapi"})
	assert.ErrorContains(t, err, "unsupported TTS engine type")
}

func TestGetAvailableEnginesAlwaysHasMock(t *testing.T) {
	assert.Contains(t, GetAvailableEngines(), EngineTypeMock)
}

func TestESpeakVoice(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"en-US", "en-us"},
		{"en-GB", "en-gb"},
		{"hi-IN", "hi"},
		{"te-IN", "te"},
		{"fr", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.want, espeakVoice(tt.lang))
		})
	}
}

func TestESpeakArgs(t *testing.T) {
	args := espeakArgs(Config{Speed: 1.2, Volume: 0.5}, "Good morning!", "en-US")
	assert.Equal(t, []string{"-v", "en-us", "-s", "210", "-a", "50", "Good morning!"}, args)

	args = espeakArgs(Config{Voice: "en-gb", Speed: 1, Volume: 1}, "Hi", "hi-IN")
	assert.Equal(t, []string{"-v", "en-gb", "-s", "175", "-a", "100", "Hi"}, args)
}

func TestParseESpeakVoices(t *testing.T) {
	out := "Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
		" 5  en-us           --/M      English_(America)  gmw/en-US            (en 10)\n" +
		" 5  hi              --/M      Hindi              inc/hi\n\n"
	assert.Equal(t, []string{"English_(America)", "Hindi"}, parseESpeakVoices(out))
}

func TestVoiceFor(t *testing.T) {
	assert.Equal(t, "en-US-Standard-C", voiceFor("en-US-Standard-C", "en-US"))
	assert.Empty(t, voiceFor("en-US-Standard-C", "hi-IN"))
	assert.Empty(t, voiceFor("default", "en-US"))
}

func TestSplitIntoChunks(t *testing.T) {
	chunks := splitIntoChunks("नमस्ते दोस्त", 4)
	assert.Equal(t, []string{"नमस्", "ते द", "ोस्त"}, chunks)
	assert.Nil(t, splitIntoChunks("", 4))
}
