// Package language holds the fixed table of supported learner languages and
// which of them can be spoken aloud.
package language

// Tag is a BCP 47 language tag such as "en-US".
type Tag string

const (
	English Tag = "en-US"
	Hindi   Tag = "hi-IN"
	Telugu  Tag = "te-IN"
)

// Default is used when no language has been chosen.
const Default = English

// Language is one row of the policy table.
type Language struct {
	Tag            Tag    `json:"tag"`
	Name           string `json:"name"`
	VoiceSupported bool   `json:"voice_supported"`
}

// Policy maps tags to display names and voice support.
type Policy struct {
	languages []Language
	byTag     map[Tag]Language
}

// DefaultPolicy returns the built-in table. Telugu is text only.
func DefaultPolicy() *Policy {
	return NewPolicy([]Language{
		{Tag: English, Name: "English", VoiceSupported: true},
		{Tag: Hindi, Name: "Hindi", VoiceSupported: true},
		{Tag: Telugu, Name: "Telugu", VoiceSupported: false},
	})
}

// NewPolicy builds a policy from an ordered table.
func NewPolicy(languages []Language) *Policy {
	p := &Policy{
		languages: append([]Language(nil), languages...),
		byTag:     make(map[Tag]Language, len(languages)),
	}
	for _, l := range languages {
		p.byTag[l.Tag] = l
	}
	return p
}

// All returns the table in display order.
func (p *Policy) All() []Language {
	return append([]Language(nil), p.languages...)
}

// Lookup finds a language by tag.
func (p *Policy) Lookup(tag Tag) (Language, bool) {
	l, ok := p.byTag[tag]
	return l, ok
}

// Supported reports whether tag is in the table.
func (p *Policy) Supported(tag Tag) bool {
	_, ok := p.byTag[tag]
	return ok
}

// Name returns the display name for tag, falling back to English.
func (p *Policy) Name(tag Tag) string {
	if l, ok := p.byTag[tag]; ok {
		return l.Name
	}
	return "English"
}

// VoiceSupported reports whether speech may be synthesized for tag. Unknown
// tags are treated as speakable.
func (p *Policy) VoiceSupported(tag Tag) bool {
	if l, ok := p.byTag[tag]; ok {
		return l.VoiceSupported
	}
	return true
}

// AdvisoryText returns the notice shown when a text-only language is picked.
func (p *Policy) AdvisoryText(tag Tag) (string, bool) {
	if p.VoiceSupported(tag) {
		return "", false
	}
	return "Note: Only text responses available in " + p.Name(tag) + ". Voice features are not supported.", true
}
