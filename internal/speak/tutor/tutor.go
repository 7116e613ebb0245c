// Package tutor produces Genie's free-form chat replies.
//
// A Provider turns the learner's message, the prior conversation and the
// target language into one reply. Genie is the production Provider; it
// builds the tutoring instructions and delegates the model call to a
// Completer. Conversation keeps a single chat session's transcript.
package tutor

import (
	"context"

	"speakgenie/internal/domain/language"
)

// Role identifies the author of a history message.
type Role string

const (
	RoleUser  Role = "user"
	RoleGenie Role = "assistant"
)

// Message is one prior exchange sent to the model.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Provider generates Genie's reply to prompt. history holds the earlier
// messages only; prompt is not part of it.
type Provider interface {
	Generate(ctx context.Context, prompt string, history []Message, tag language.Tag) (string, error)
}

// Fixed replies.
const (
	NoCredentialsReply = "Hi! I'm Genie, your AI tutor. To have full conversations with me, please add your Gemini API key to the config file. For now, let's practice with the roleplay scenarios!"
	EmptyReply         = "I'm not sure how to respond to that. Let's talk about something else!"
	TroubleReply       = "Oops! I'm having a little trouble thinking right now."
)

// Error is a provider failure. Its message is safe to show to the learner;
// the cause is kept for logs.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
