// Package catalog holds the fixed model and voice lists surfaced to the UI.
// The proxy treats both as opaque strings; the backend is the source of
// truth for what is actually valid.
package catalog

// Model pairs a backend model identifier with a human-friendly label.
type Model struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const (
	DefaultModel = "KittenML/kitten-tts-mini-0.8"
	DefaultVoice = "Jasper"

	// SampleText is used by the UI when the text box is left empty.
	SampleText = "The quick brown fox jumps over the lazy dog"
)

var models = []Model{
	{ID: "KittenML/kitten-tts-mini-0.8", Label: "kitten-tts-mini (80M)"},
	{ID: "KittenML/kitten-tts-micro-0.8", Label: "kitten-tts-micro (40M)"},
	{ID: "KittenML/kitten-tts-nano-0.8", Label: "kitten-tts-nano (15M)"},
	{ID: "KittenML/kitten-tts-nano-0.8-int8", Label: "kitten-tts-nano-int8 (15M)"},
}

var voices = []string{
	"Bella", "Jasper", "Luna", "Bruno", "Rosie", "Hugo", "Kiki", "Leo",
}

// Models returns the fixed model catalog.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Voices returns the fixed voice catalog.
func Voices() []string {
	out := make([]string, len(voices))
	copy(out, voices)
	return out
}
