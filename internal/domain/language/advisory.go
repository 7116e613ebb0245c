package language

import (
	"sync"
	"time"

	"speakgenie/internal/clock"
)

// DefaultAdvisoryDuration is how long the text-only notice stays visible.
const DefaultAdvisoryDuration = 5 * time.Second

// Advisory is the one-time notice raised when a voice-unsupported language is
// selected. It hides itself after a fixed duration or on Dismiss.
type Advisory struct {
	mu       sync.Mutex
	policy   *Policy
	clock    clock.Clock
	duration time.Duration
	onChange func(visible bool, text string)

	text    string
	visible bool
	timer   clock.Timer
	seq     int
}

// NewAdvisory creates an advisory. onChange may be nil.
func NewAdvisory(policy *Policy, clk clock.Clock, duration time.Duration, onChange func(visible bool, text string)) *Advisory {
	if duration <= 0 {
		duration = DefaultAdvisoryDuration
	}
	if onChange == nil {
		onChange = func(bool, string) {}
	}
	return &Advisory{
		policy:   policy,
		clock:    clk,
		duration: duration,
		onChange: onChange,
	}
}

// LanguageChanged shows the notice if tag has no voice support. It returns
// whether the notice was shown.
func (a *Advisory) LanguageChanged(tag Tag) bool {
	text, ok := a.policy.AdvisoryText(tag)
	if !ok {
		return false
	}

	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.seq++
	seq := a.seq
	a.text = text
	a.visible = true
	a.timer = a.clock.AfterFunc(a.duration, func() { a.hide(seq) })
	a.mu.Unlock()

	a.onChange(true, text)
	return true
}

// Dismiss hides the notice immediately.
func (a *Advisory) Dismiss() {
	a.mu.Lock()
	seq := a.seq
	a.mu.Unlock()
	a.hide(seq)
}

// Visible returns the notice text while it is shown.
func (a *Advisory) Visible() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text, a.visible
}

// Stop cancels the pending auto-dismiss without notifying.
func (a *Advisory) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Advisory) hide(seq int) {
	a.mu.Lock()
	if seq != a.seq || !a.visible {
		a.mu.Unlock()
		return
	}
	a.visible = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	text := a.text
	a.mu.Unlock()

	a.onChange(false, text)
}
