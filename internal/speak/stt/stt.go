// Package stt turns one spoken (or typed) learner utterance into a
// transcript.
package stt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"speakgenie/internal/config"
)

var (
	// ErrNoResult means the listener heard nothing usable. The caller may
	// simply listen again.
	ErrNoResult = errors.New("no speech recognized")
	// ErrBusy is returned when a listening session is already running.
	ErrBusy = errors.New("already listening")
)

// Listener captures a single utterance in the given BCP 47 language.
type Listener interface {
	Listen(ctx context.Context, lang string) (string, error)
	Name() string
}

type ListenerType string

const (
	ListenerTypeConsole  ListenerType = "console"
	ListenerTypeDeepgram ListenerType = "deepgram"
	ListenerTypeScripted ListenerType = "scripted"
)

// NewListener builds a listener from config. The result is wrapped in
// Exclusive.
func NewListener(cfg config.STTConfig) (*Exclusive, error) {
	var (
		l   Listener
		err error
	)

	switch ListenerType(cfg.Type) {
	case ListenerTypeConsole, "":
		l = NewConsole(nil, nil)

	case ListenerTypeDeepgram:
		var dc DeepgramConfig
		if err := config.DecodeSettings(cfg.Settings, &dc); err != nil {
			return nil, fmt.Errorf("invalid deepgram settings: %w", err)
		}
		l, err = NewDeepgram(dc)

	case ListenerTypeScripted:
		var sc struct {
			Lines []string `mapstructure:"lines"`
		}
		if err := config.DecodeSettings(cfg.Settings, &sc); err != nil {
			return nil, fmt.Errorf("invalid scripted settings: %w", err)
		}
		l = NewScripted(sc.Lines...)

	default:
		return nil, fmt.Errorf("unsupported STT listener type: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}
	return NewExclusive(l), nil
}

// Exclusive allows one listening session at a time. A second Listen while
// one is active fails fast with ErrBusy.
type Exclusive struct {
	inner  Listener
	active atomic.Bool
}

func NewExclusive(l Listener) *Exclusive {
	return &Exclusive{inner: l}
}

func (e *Exclusive) Listen(ctx context.Context, lang string) (string, error) {
	if !e.active.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer e.active.Store(false)
	return e.inner.Listen(ctx, lang)
}

func (e *Exclusive) Name() string { return e.inner.Name() }

// Listening reports whether a session is in progress.
func (e *Exclusive) Listening() bool { return e.active.Load() }
