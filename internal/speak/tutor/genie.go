package tutor

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"speakgenie/internal/domain/language"
)

// Completer sends a system instruction and an ordered message list to a
// language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Genie is the tutor Provider. Without a Completer it answers every prompt
// with NoCredentialsReply.
type Genie struct {
	completer Completer
	policy    *language.Policy
	timeout   time.Duration
}

// NewGenie creates a tutor. completer may be nil when no credentials are
// configured. A zero timeout means no per-request limit.
func NewGenie(completer Completer, policy *language.Policy, timeout time.Duration) *Genie {
	if policy == nil {
		policy = language.DefaultPolicy()
	}
	return &Genie{completer: completer, policy: policy, timeout: timeout}
}

// Configured reports whether a model is behind this tutor.
func (g *Genie) Configured() bool {
	return g.completer != nil
}

func (g *Genie) Generate(ctx context.Context, prompt string, history []Message, tag language.Tag) (string, error) {
	if g.completer == nil {
		return NoCredentialsReply, nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Text: prompt})

	reply, err := g.completer.Complete(ctx, SystemPrompt(g.policy.Name(tag)), messages)
	if err != nil {
		logrus.WithError(err).WithField("lang", tag).Error("Tutor request failed")
		return "", &Error{Message: TroubleReply, Err: err}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return EmptyReply, nil
	}
	return reply, nil
}
