package tutor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakgenie/internal/config"
	"speakgenie/internal/domain/language"
)

type call struct {
	system   string
	messages []Message
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []call
	gate  chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{system: system, messages: append([]Message(nil), messages...)})
	return f.reply, f.err
}

func (f *fakeCompleter) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestGenieWithoutCompleter(t *testing.T) {
	g := NewGenie(nil, nil, 0)
	assert.False(t, g.Configured())

	reply, err := g.Generate(context.Background(), "hello", nil, language.English)
	require.NoError(t, err)
	assert.Equal(t, NoCredentialsReply, reply)
}

func TestGenieSendsHistoryThenPrompt(t *testing.T) {
	fc := &fakeCompleter{reply: "  नमस्ते! आप कैसे हैं?  "}
	g := NewGenie(fc, language.DefaultPolicy(), time.Second)

	history := []Message{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleGenie, Text: "Hello!"},
	}
	reply, err := g.Generate(context.Background(), "how are you", history, language.Hindi)
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते! आप कैसे हैं?", reply)

	c := fc.lastCall()
	assert.Contains(t, c.system, "respond ONLY in Hindi")
	assert.Contains(t, c.system, "Do not use any emojis")
	assert.Equal(t, []Message{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleGenie, Text: "Hello!"},
		{Role: RoleUser, Text: "how are you"},
	}, c.messages)
}

func TestGenieUnknownLanguageFallsBackToEnglish(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	g := NewGenie(fc, nil, 0)

	_, err := g.Generate(context.Background(), "hi", nil, language.Tag("xx-XX"))
	require.NoError(t, err)
	assert.Contains(t, fc.lastCall().system, "respond ONLY in English")
}

func TestGenieEmptyReply(t *testing.T) {
	g := NewGenie(&fakeCompleter{reply: " \n"}, nil, 0)

	reply, err := g.Generate(context.Background(), "hi", nil, language.English)
	require.NoError(t, err)
	assert.Equal(t, EmptyReply, reply)
}

func TestGenieFailure(t *testing.T) {
	cause := errors.New("503 service unavailable")
	g := NewGenie(&fakeCompleter{err: cause}, nil, 0)

	_, err := g.Generate(context.Background(), "hi", nil, language.English)
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TroubleReply, te.Error())
	assert.ErrorIs(t, err, cause)
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("Telugu")
	assert.Contains(t, p, "children aged 6-12")
	assert.Contains(t, p, "respond ONLY in Telugu")
	assert.Contains(t, p, "2-3 sentences")
}

func TestNewWithoutKey(t *testing.T) {
	g, err := New(config.TutorConfig{Provider: "gemini", Model: "gemini-2.0-flash"}, nil)
	require.NoError(t, err)
	assert.False(t, g.Configured())
}

func TestCreateBackendUnknown(t *testing.T) {
	_, err := createBackend("watson")
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestBuildParams(t *testing.T) {
	a := &AnyLLM{model: "gemini-2.0-flash", temperature: 0.7, maxTokens: 256}
	params := a.buildParams("be kind", []Message{{Role: RoleUser, Text: "hi"}, {Role: RoleGenie, Text: "hello"}})

	assert.Equal(t, "gemini-2.0-flash", params.Model)
	require.Len(t, params.Messages, 3)
	assert.Equal(t, "system", params.Messages[0].Role)
	assert.Equal(t, "be kind", params.Messages[0].ContentString())
	assert.Equal(t, "user", params.Messages[1].Role)
	assert.Equal(t, "assistant", params.Messages[2].Role)
	assert.Equal(t, "hello", params.Messages[2].ContentString())
	require.NotNil(t, params.Temperature)
	assert.InDelta(t, 0.7, *params.Temperature, 1e-9)
	require.NotNil(t, params.MaxTokens)
	assert.Equal(t, 256, *params.MaxTokens)
}
