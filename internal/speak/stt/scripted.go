package stt

import (
	"context"
	"strings"
	"sync"
)

// Scripted replays a fixed list of transcripts, one per Listen. Blank
// lines yield ErrNoResult. Once exhausted every call returns ErrNoResult.
type Scripted struct {
	mu    sync.Mutex
	lines []string
	heard []string
}

func NewScripted(lines ...string) *Scripted {
	return &Scripted{lines: lines}
}

func (s *Scripted) Name() string { return string(ListenerTypeScripted) }

func (s *Scripted) Listen(ctx context.Context, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return "", ErrNoResult
	}
	line := strings.TrimSpace(s.lines[0])
	s.lines = s.lines[1:]
	s.heard = append(s.heard, lang)

	if line == "" {
		return "", ErrNoResult
	}
	return line, nil
}

// Languages returns the language of every Listen that consumed a line.
func (s *Scripted) Languages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.heard...)
}
