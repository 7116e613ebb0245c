package tts

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"speakgenie/internal/domain/language"
)

// Voice is the only path from the app to an Engine. It drops speech for
// languages the policy marks as text only and interrupts whatever is
// currently playing before starting a new line.
type Voice struct {
	mu     sync.Mutex
	engine Engine
	policy *language.Policy
}

// NewVoice wraps engine. A nil policy means language.DefaultPolicy.
func NewVoice(engine Engine, policy *language.Policy) *Voice {
	if policy == nil {
		policy = language.DefaultPolicy()
	}
	return &Voice{engine: engine, policy: policy}
}

// Say speaks text in tag. It reports whether anything was sent to the
// engine.
func (v *Voice) Say(text string, tag language.Tag) bool {
	if text == "" || !v.policy.VoiceSupported(tag) {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.engine.Stop(); err != nil {
		logrus.WithError(err).Debug("Failed to stop previous utterance")
	}
	if err := v.engine.Speak(text, string(tag)); err != nil {
		logrus.WithError(err).WithField("lang", tag).Warn("Speech synthesis failed")
		return false
	}
	return true
}

// Stop silences the engine.
func (v *Voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.engine.Stop(); err != nil {
		logrus.WithError(err).Debug("Failed to stop speech")
	}
}

// WaitIdle blocks until the engine finishes or timeout passes. It reports
// whether playback finished.
func (v *Voice) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for v.engine.IsPlaying() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
	return true
}

// Engine returns the wrapped engine.
func (v *Voice) Engine() Engine {
	return v.engine
}
