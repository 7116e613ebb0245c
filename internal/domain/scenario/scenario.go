// Package scenario models scripted roleplay dialogues.
package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// Speaker tags who owns a turn.
type Speaker string

const (
	SpeakerGenie Speaker = "genie"
	SpeakerUser  Speaker = "user"
)

// Turn is one step of a roleplay. Genie turns carry Text; user turns carry a
// Prompt, acceptance Keywords and an optional Example.
type Turn struct {
	Speaker  Speaker  `json:"speaker" yaml:"speaker"`
	Text     string   `json:"text,omitempty" yaml:"text,omitempty"`
	Prompt   string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Example  string   `json:"example,omitempty" yaml:"example,omitempty"`
}

// IsNarrator reports whether Genie speaks this turn.
func (t Turn) IsNarrator() bool { return t.Speaker == SpeakerGenie }

// IsUser reports whether the learner is expected to answer on this turn.
func (t Turn) IsUser() bool { return t.Speaker == SpeakerUser }

// Scenario is a scripted dialogue. It is never modified after loading.
type Scenario struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Icon  string `json:"icon" yaml:"icon"`
	Turns []Turn `json:"turns" yaml:"turns"`
}

var (
	ErrMissingID      = errors.New("scenario id is required")
	ErrNoTurns        = errors.New("scenario has no turns")
	ErrInvalidTurn    = errors.New("invalid turn")
	ErrDuplicateID    = errors.New("duplicate scenario id")
	ErrUnknownSpeaker = errors.New("unknown speaker")
)

// Validate checks the invariants every catalog entry must satisfy.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrMissingID
	}
	if len(s.Turns) == 0 {
		return fmt.Errorf("%s: %w", s.ID, ErrNoTurns)
	}

	for i, turn := range s.Turns {
		switch turn.Speaker {
		case SpeakerGenie:
			if strings.TrimSpace(turn.Text) == "" {
				return fmt.Errorf("%s: turn %d: genie turn needs text: %w", s.ID, i, ErrInvalidTurn)
			}
		case SpeakerUser:
			if strings.TrimSpace(turn.Prompt) == "" {
				return fmt.Errorf("%s: turn %d: user turn needs a prompt: %w", s.ID, i, ErrInvalidTurn)
			}
			// a blank keyword would match every transcript
			for _, k := range turn.Keywords {
				if strings.TrimSpace(k) == "" {
					return fmt.Errorf("%s: turn %d: blank keyword: %w", s.ID, i, ErrInvalidTurn)
				}
			}
		default:
			return fmt.Errorf("%s: turn %d: %q: %w", s.ID, i, turn.Speaker, ErrUnknownSpeaker)
		}
	}

	return nil
}

// ValidateAll validates each scenario and rejects duplicate ids.
func ValidateAll(scenarios []Scenario) error {
	seen := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("%s: %w", s.ID, ErrDuplicateID)
		}
		seen[s.ID] = true
	}
	return nil
}
