package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScenario() Scenario {
	return Scenario{
		ID:    "greet",
		Title: "Greetings",
		Icon:  "☀️",
		Turns: []Turn{
			{Speaker: SpeakerGenie, Text: "Hello!"},
			{Speaker: SpeakerUser, Prompt: "Say hello back.", Keywords: []string{"hello"}},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr error
	}{
		{"valid", func(*Scenario) {}, nil},
		{"missing id", func(s *Scenario) { s.ID = " " }, ErrMissingID},
		{"no turns", func(s *Scenario) { s.Turns = nil }, ErrNoTurns},
		{"genie without text", func(s *Scenario) { s.Turns[0].Text = "" }, ErrInvalidTurn},
		{"user without prompt", func(s *Scenario) { s.Turns[1].Prompt = "" }, ErrInvalidTurn},
		{"blank keyword", func(s *Scenario) { s.Turns[1].Keywords = []string{"ok", "  "} }, ErrInvalidTurn},
		{"unknown speaker", func(s *Scenario) { s.Turns[0].Speaker = "narrator" }, ErrUnknownSpeaker},
		{"user turn without keywords", func(s *Scenario) { s.Turns[1].Keywords = nil }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateAllRejectsDuplicates(t *testing.T) {
	err := ValidateAll([]Scenario{validScenario(), validScenario()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestTurnKinds(t *testing.T) {
	s := validScenario()
	assert.True(t, s.Turns[0].IsNarrator())
	assert.False(t, s.Turns[0].IsUser())
	assert.True(t, s.Turns[1].IsUser())
}
