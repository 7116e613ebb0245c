// Package roleplay drives scripted dialogues: it validates what the learner
// said against the active turn and moves the dialogue forward on a timer.
//
// State holds one session and is advanced by pure transition methods. Engine
// owns a State, schedules the delayed transitions and reports effects to an
// Observer.
package roleplay

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"speakgenie/internal/domain/scenario"
)

// Feedback messages shown to the learner.
const (
	MessagePerfect   = "Perfect! That was great."
	MessageCompleted = "You completed the scenario!"
	MessageTryAgain  = "That's not quite right. Let's try that again!"
)

var (
	ErrNoScenario      = errors.New("no scenario selected")
	ErrNotUserTurn     = errors.New("current turn is not the learner's")
	ErrTurnComplete    = errors.New("turn already answered")
	ErrEmptyTranscript = errors.New("empty transcript")
)

// FeedbackKind is the outcome shown under a user turn.
type FeedbackKind string

const (
	FeedbackNone    FeedbackKind = ""
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
)

// Feedback is the tagged message for the current turn.
type Feedback struct {
	Kind FeedbackKind `json:"kind"`
	Text string       `json:"text"`
}

func success(text string) Feedback { return Feedback{Kind: FeedbackSuccess, Text: text} }

func failure(text string) Feedback { return Feedback{Kind: FeedbackError, Text: text} }

// Config holds the timing of automatic transitions.
type Config struct {
	// AdvanceDelay is the pause between a correct answer and the next turn.
	AdvanceDelay time.Duration
	// NarrationMin and NarrationPerRune estimate how long Genie talks.
	NarrationMin     time.Duration
	NarrationPerRune time.Duration
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		AdvanceDelay:     2000 * time.Millisecond,
		NarrationMin:     2000 * time.Millisecond,
		NarrationPerRune: 60 * time.Millisecond,
	}
}

// NarrationDelay approximates how long text takes to say aloud.
func (c Config) NarrationDelay(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * c.NarrationPerRune
	if d < c.NarrationMin {
		return c.NarrationMin
	}
	return d
}

// State is one roleplay session. The zero value is the scenario catalog view.
type State struct {
	Scenario       *scenario.Scenario
	TurnIndex      int
	LastTranscript string
	Feedback       Feedback
	// Generation changes on every select and reset so delayed work started
	// for an earlier session can tell it is stale.
	Generation uint64
}

// Active reports whether a scenario is selected.
func (s State) Active() bool { return s.Scenario != nil }

// Current returns the active turn.
func (s State) Current() (scenario.Turn, bool) {
	if s.Scenario == nil || s.TurnIndex < 0 || s.TurnIndex >= len(s.Scenario.Turns) {
		return scenario.Turn{}, false
	}
	return s.Scenario.Turns[s.TurnIndex], true
}

// HasNext reports whether a turn follows the active one.
func (s State) HasNext() bool {
	return s.Scenario != nil && s.TurnIndex+1 < len(s.Scenario.Turns)
}

// Progress is the share of the dialogue already behind the learner, in percent.
func (s State) Progress() float64 {
	if s.Scenario == nil || len(s.Scenario.Turns) <= 1 {
		return 0
	}
	return float64(s.TurnIndex) / float64(len(s.Scenario.Turns)-1) * 100
}

// Terminal reports whether the scenario has been completed.
func (s State) Terminal() bool {
	return s.Scenario != nil &&
		s.TurnIndex == len(s.Scenario.Turns)-1 &&
		s.Feedback == success(MessageCompleted)
}

// Select starts sc from its first turn.
func (s State) Select(sc *scenario.Scenario) State {
	return State{Scenario: sc, Generation: s.Generation + 1}
}

// Reset returns to the scenario catalog.
func (s State) Reset() State {
	return State{Generation: s.Generation + 1}
}

// Submit checks transcript against the active user turn. The returned bool
// reports whether the answer was accepted.
func (s State) Submit(transcript string) (State, bool, error) {
	turn, ok := s.Current()
	if !ok {
		return s, false, ErrNoScenario
	}
	if !turn.IsUser() {
		return s, false, ErrNotUserTurn
	}
	if s.Feedback.Kind == FeedbackSuccess {
		return s, false, ErrTurnComplete
	}
	if strings.TrimSpace(transcript) == "" {
		return s, false, ErrEmptyTranscript
	}

	s.LastTranscript = transcript
	if Matches(transcript, turn.Keywords) {
		s.Feedback = success(MessagePerfect)
		return s, true, nil
	}
	s.Feedback = failure(MessageTryAgain)
	return s, false, nil
}

// Advance moves to the next turn, or marks the scenario complete when the
// active turn is the last one.
func (s State) Advance() State {
	if s.Scenario == nil {
		return s
	}
	if s.HasNext() {
		s.TurnIndex++
		s.LastTranscript = ""
		s.Feedback = Feedback{}
		return s
	}
	s.Feedback = success(MessageCompleted)
	return s
}

// Matches reports whether transcript contains any keyword, ignoring case. A
// turn without keywords accepts any non-blank transcript.
func Matches(transcript string, keywords []string) bool {
	if strings.TrimSpace(transcript) == "" {
		return false
	}
	if len(keywords) == 0 {
		return true
	}

	folded := strings.ToLower(transcript)
	for _, k := range keywords {
		if strings.Contains(folded, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
