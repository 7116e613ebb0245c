package tutor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakgenie/internal/domain/language"
)

func TestConversationStartsWithGreeting(t *testing.T) {
	c := NewConversation(NewGenie(nil, nil, 0), language.English)
	assert.Equal(t, []Entry{{Sender: SenderGenie, Text: Greeting}}, c.Entries())
	assert.Empty(t, c.History())
}

func TestConversationSend(t *testing.T) {
	fc := &fakeCompleter{reply: "Nice to meet you! What is your favourite game?"}
	c := NewConversation(NewGenie(fc, nil, 0), language.English)

	entry, err := c.Send(context.Background(), "  My name is Asha  ")
	require.NoError(t, err)
	assert.Equal(t, Entry{Sender: SenderGenie, Text: "Nice to meet you! What is your favourite game?"}, entry)

	_, err = c.Send(context.Background(), "Football")
	require.NoError(t, err)

	// history excludes the prompt being sent
	assert.Equal(t, []Message{
		{Role: RoleUser, Text: "My name is Asha"},
		{Role: RoleGenie, Text: "Nice to meet you! What is your favourite game?"},
		{Role: RoleUser, Text: "Football"},
	}, fc.lastCall().messages)

	assert.Len(t, c.Entries(), 5)
	assert.Len(t, c.History(), 4)
}

func TestConversationBlankMessage(t *testing.T) {
	c := NewConversation(NewGenie(nil, nil, 0), language.English)

	_, err := c.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrBlankMessage)
	assert.Len(t, c.Entries(), 1)
}

func TestConversationFailureKeepsSession(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("timeout")}
	c := NewConversation(NewGenie(fc, nil, 0), language.English)

	entry, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, entry.IsError)
	assert.Equal(t, TroubleReply, entry.Text)
	assert.False(t, c.Busy())

	// the user message is kept for the next attempt
	assert.Equal(t, []Message{{Role: RoleUser, Text: "hello"}}, c.History())

	fc.err = nil
	fc.reply = "Hello again!"
	entry, err = c.Send(context.Background(), "are you there?")
	require.NoError(t, err)
	assert.False(t, entry.IsError)
}

func TestConversationRejectsConcurrentSend(t *testing.T) {
	fc := &fakeCompleter{reply: "Hi!", gate: make(chan struct{})}
	c := NewConversation(NewGenie(fc, nil, 0), language.English)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background(), "first")
	}()

	require.Eventually(t, c.Busy, time.Second, 5*time.Millisecond)
	_, err := c.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(fc.gate)
	<-done
	assert.False(t, c.Busy())
	assert.Len(t, c.Entries(), 3)
}

func TestConversationBeginHoldsSlotUntilFinish(t *testing.T) {
	fc := &fakeCompleter{reply: "Hi!"}
	c := NewConversation(NewGenie(fc, nil, 0), language.English)

	req, err := c.Begin("  first  ")
	require.NoError(t, err)
	assert.Equal(t, "first", req.Text())
	assert.True(t, c.Busy())

	_, err = c.Begin("second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Send(context.Background(), "third")
	assert.ErrorIs(t, err, ErrBusy)

	entry := req.Finish(context.Background())
	assert.Equal(t, "Hi!", entry.Text)
	assert.False(t, c.Busy())
	assert.Len(t, c.Entries(), 3)

	_, err = c.Begin("   ")
	assert.ErrorIs(t, err, ErrBlankMessage)
}

func TestConversationSetLanguage(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	c := NewConversation(NewGenie(fc, nil, 0), language.English)

	c.SetLanguage(language.Telugu)
	assert.Equal(t, language.Telugu, c.Language())

	_, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Contains(t, fc.lastCall().system, "respond ONLY in Telugu")
}
