package roleplay

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"speakgenie/internal/clock"
	"speakgenie/internal/domain/scenario"
)

// Observer receives the effects of engine transitions. Calls are made
// without the engine lock held, so observers may call back into the engine.
type Observer interface {
	// StateChanged is called with a snapshot after every transition.
	StateChanged(State)
	// Speak asks the caller to say text aloud. The engine never plays audio.
	Speak(text string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnChange func(State)
	OnSpeak  func(string)
}

func (o ObserverFuncs) StateChanged(s State) {
	if o.OnChange != nil {
		o.OnChange(s)
	}
}

func (o ObserverFuncs) Speak(text string) {
	if o.OnSpeak != nil {
		o.OnSpeak(text)
	}
}

// effect is stamped with the session generation that produced it.
type effect struct {
	generation uint64
	state      *State
	speak      string
}

type effects []effect

func (ev *effects) changed(s State) {
	*ev = append(*ev, effect{generation: s.Generation, state: &s})
}

func (ev *effects) say(generation uint64, text string) {
	*ev = append(*ev, effect{generation: generation, speak: text})
}

// Engine runs one roleplay session.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	observer Observer
	state    State

	// at most one delayed transition is pending at a time
	pending clock.Timer
	taskSeq uint64
}

// NewEngine creates an engine in the catalog view. clk and observer may be nil.
func NewEngine(cfg Config, clk clock.Clock, observer Observer) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	return &Engine{cfg: cfg, clock: clk, observer: observer}
}

// State returns a snapshot of the session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SelectScenario starts sc from the first turn, dropping whatever was in
// progress. A leading Genie turn is narrated right away.
func (e *Engine) SelectScenario(sc *scenario.Scenario) {
	var ev effects

	e.mu.Lock()
	e.cancelLocked()
	e.state = e.state.Select(sc)
	ev.changed(e.state)
	e.narrateLocked(&ev)
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"scenario": sc.ID,
		"turns":    len(sc.Turns),
	}).Debug("Scenario selected")

	e.emit(ev)
}

// SubmitTranscript checks what the learner said. On success the dialogue
// moves on after the configured delay; on failure the try-again message is
// spoken and the turn stays put.
func (e *Engine) SubmitTranscript(transcript string) (bool, error) {
	var ev effects

	e.mu.Lock()
	next, accepted, err := e.state.Submit(transcript)
	if err != nil {
		e.mu.Unlock()
		return false, err
	}
	e.state = next
	ev.changed(e.state)
	if accepted {
		e.scheduleLocked(e.cfg.AdvanceDelay, e.advanceLocked)
	} else {
		ev.say(e.state.Generation, MessageTryAgain)
	}
	fields := logrus.Fields{
		"scenario": e.state.Scenario.ID,
		"turn":     e.state.TurnIndex,
		"accepted": accepted,
	}
	e.mu.Unlock()

	logrus.WithFields(fields).Debug("Transcript checked")
	e.emit(ev)
	return accepted, nil
}

// AdvanceIfNarrator narrates the active turn if Genie owns it and schedules
// the move past it. It does nothing on a learner turn.
func (e *Engine) AdvanceIfNarrator() {
	var ev effects

	e.mu.Lock()
	e.narrateLocked(&ev)
	e.mu.Unlock()

	e.emit(ev)
}

// ResetToScenarioCatalog leaves the scenario and cancels pending transitions.
func (e *Engine) ResetToScenarioCatalog() {
	var ev effects

	e.mu.Lock()
	e.cancelLocked()
	e.state = e.state.Reset()
	ev.changed(e.state)
	e.mu.Unlock()

	e.emit(ev)
}

// Close cancels pending transitions. The engine stays usable.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

func (e *Engine) narrateLocked(ev *effects) {
	turn, ok := e.state.Current()
	if !ok || !turn.IsNarrator() {
		return
	}

	ev.say(e.state.Generation, turn.Text)
	e.scheduleLocked(e.cfg.NarrationDelay(turn.Text), e.advanceLocked)
}

// advanceLocked moves past an answered or narrated turn. Landing on another
// Genie turn narrates it too.
func (e *Engine) advanceLocked(ev *effects) {
	before := e.state.TurnIndex
	e.state = e.state.Advance()
	ev.changed(e.state)
	if e.state.TurnIndex != before {
		e.narrateLocked(ev)
	}
}

// scheduleLocked replaces the pending transition. The task only runs if the
// session generation, turn and task sequence are unchanged when it fires.
func (e *Engine) scheduleLocked(d time.Duration, fn func(*effects)) {
	e.cancelLocked()

	seq := e.taskSeq
	gen := e.state.Generation
	turn := e.state.TurnIndex

	e.pending = e.clock.AfterFunc(d, func() {
		var ev effects

		e.mu.Lock()
		if seq != e.taskSeq || gen != e.state.Generation || turn != e.state.TurnIndex {
			e.mu.Unlock()
			logrus.WithFields(logrus.Fields{
				"generation": gen,
				"turn":       turn,
			}).Debug("Dropped stale roleplay task")
			return
		}
		e.pending = nil
		fn(&ev)
		e.mu.Unlock()

		e.emit(ev)
	})
}

func (e *Engine) cancelLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	// invalidates a task that already fired and is waiting for the lock
	e.taskSeq++
}

// emit delivers effects in order. Effects of a session that was replaced
// or reset while earlier ones were being delivered are dropped.
func (e *Engine) emit(ev effects) {
	for _, eff := range ev {
		e.mu.Lock()
		current := e.state.Generation
		e.mu.Unlock()
		if eff.generation != current {
			logrus.WithField("generation", eff.generation).Debug("Dropped stale roleplay effect")
			continue
		}

		if eff.state != nil {
			e.observer.StateChanged(*eff.state)
			continue
		}
		e.observer.Speak(eff.speak)
	}
}
