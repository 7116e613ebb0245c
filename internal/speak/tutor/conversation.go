package tutor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"speakgenie/internal/domain/language"
)

var (
	ErrBlankMessage = errors.New("message is blank")
	ErrBusy         = errors.New("genie is still thinking")
)

// Greeting opens every chat.
const Greeting = "Hi there! I'm Genie. Let's talk!"

type Sender string

const (
	SenderGenie Sender = "genie"
	SenderUser  Sender = "user"
)

// Entry is one line of the visible chat.
type Entry struct {
	Sender  Sender `json:"sender"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
}

// Conversation is one chat session with Genie. At most one request is in
// flight at a time.
type Conversation struct {
	mu       sync.Mutex
	provider Provider
	lang     language.Tag
	entries  []Entry
	history  []Message
	busy     bool
}

func NewConversation(provider Provider, lang language.Tag) *Conversation {
	return &Conversation{
		provider: provider,
		lang:     lang,
		entries:  []Entry{{Sender: SenderGenie, Text: Greeting}},
	}
}

// Send posts text as the learner and waits for Genie. The returned entry is
// Genie's reply, flagged IsError when the provider failed; the session stays
// usable either way.
func (c *Conversation) Send(ctx context.Context, text string) (Entry, error) {
	req, err := c.Begin(text)
	if err != nil {
		return Entry{}, err
	}
	return req.Finish(ctx), nil
}

// Request is a learner message that holds the conversation's only request
// slot until Finish returns.
type Request struct {
	c       *Conversation
	text    string
	lang    language.Tag
	history []Message
}

// Begin claims the request slot and records text as the learner's message.
// It fails with ErrBusy while another request is outstanding.
func (c *Conversation) Begin(text string) (*Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrBlankMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, ErrBusy
	}
	c.busy = true

	req := &Request{
		c:       c,
		text:    text,
		lang:    c.lang,
		history: append([]Message(nil), c.history...),
	}
	c.entries = append(c.entries, Entry{Sender: SenderUser, Text: text})
	c.history = append(c.history, Message{Role: RoleUser, Text: text})
	return req, nil
}

// Text is the learner's message.
func (r *Request) Text() string { return r.text }

// Finish asks the provider for Genie's reply and releases the slot. Call it
// exactly once.
func (r *Request) Finish(ctx context.Context) Entry {
	reply, err := r.c.provider.Generate(ctx, r.text, r.history, r.lang)

	c := r.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		entry := Entry{Sender: SenderGenie, Text: TroubleReply, IsError: true}
		var te *Error
		if errors.As(err, &te) {
			entry.Text = te.Message
		}
		c.entries = append(c.entries, entry)
		return entry
	}

	entry := Entry{Sender: SenderGenie, Text: reply}
	c.entries = append(c.entries, entry)
	c.history = append(c.history, Message{Role: RoleGenie, Text: reply})
	return entry
}

// SetLanguage changes the reply language for subsequent messages.
func (c *Conversation) SetLanguage(tag language.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lang = tag
}

func (c *Conversation) Language() language.Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

// Entries returns the visible chat, greeting first.
func (c *Conversation) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// History returns the messages that will accompany the next request.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}

func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}
