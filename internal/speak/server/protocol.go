package server

import (
	"speakgenie/internal/domain/language"
	"speakgenie/internal/domain/scenario"
	"speakgenie/internal/speak/roleplay"
	"speakgenie/internal/speak/tutor"
)

// Client message types.
const (
	TypeSelectScenario  = "select_scenario"
	TypeTranscript      = "transcript"
	TypeReset           = "reset"
	TypeRepeat          = "repeat"
	TypeChat            = "chat"
	TypeLanguage        = "language"
	TypeDismissAdvisory = "dismiss_advisory"
)

// Server message types.
const (
	TypeCatalog     = "catalog"
	TypeState       = "state"
	TypeSpeak       = "speak"
	TypeChatMessage = "chat_message"
	TypeChatBusy    = "chat_busy"
	TypeAdvisory    = "advisory"
	TypeError       = "error"
)

// Inbound is a message from the browser.
type Inbound struct {
	Type       string       `json:"type"`
	ScenarioID string       `json:"scenario_id,omitempty"`
	Text       string       `json:"text,omitempty"`
	Tag        language.Tag `json:"tag,omitempty"`
}

// Outbound is a message to the browser. Only the fields of its Type are set.
type Outbound struct {
	Type string `json:"type"`

	// catalog
	Scenarios []scenario.Scenario `json:"scenarios,omitempty"`
	Languages []language.Language `json:"languages,omitempty"`

	State *StateView `json:"state,omitempty"`

	// speak, chat_message, advisory
	Text    string       `json:"text,omitempty"`
	Lang    language.Tag `json:"lang,omitempty"`
	Sender  tutor.Sender `json:"sender,omitempty"`
	IsError bool         `json:"is_error,omitempty"`

	Busy    *bool `json:"busy,omitempty"`
	Visible *bool `json:"visible,omitempty"`

	Message string `json:"message,omitempty"`
}

// StateView is the roleplay state as rendered by the browser.
type StateView struct {
	ScenarioID     string            `json:"scenario_id,omitempty"`
	Title          string            `json:"title,omitempty"`
	Icon           string            `json:"icon,omitempty"`
	TurnIndex      int               `json:"turn_index"`
	TurnCount      int               `json:"turn_count"`
	Progress       float64           `json:"progress"`
	Turn           *scenario.Turn    `json:"turn,omitempty"`
	LastTranscript string            `json:"last_transcript,omitempty"`
	Feedback       roleplay.Feedback `json:"feedback"`
	Completed      bool              `json:"completed"`
	Language       language.Tag      `json:"language"`
}

func newStateView(st roleplay.State, lang language.Tag) *StateView {
	v := &StateView{
		TurnIndex:      st.TurnIndex,
		Progress:       st.Progress(),
		LastTranscript: st.LastTranscript,
		Feedback:       st.Feedback,
		Completed:      st.Terminal(),
		Language:       lang,
	}
	if st.Scenario != nil {
		v.ScenarioID = st.Scenario.ID
		v.Title = st.Scenario.Title
		v.Icon = st.Scenario.Icon
		v.TurnCount = len(st.Scenario.Turns)
	}
	if turn, ok := st.Current(); ok {
		v.Turn = &turn
	}
	return v
}

func boolPtr(b bool) *bool { return &b }
