package config

// Static registry of supported Gemini models and the serving location each
// one runs in. Immutable, safe for unsynchronized concurrent reads.

const (
	LocationGlobal        = "global"
	LocationAsiaSoutheast = "asia-southeast1"
)

// FallbackModel is used when no model is requested and no default is
// configured.
const FallbackModel = "gemini-2.0-flash-001"

var geminiModels = map[string]string{
	"gemini-2.5-pro-preview-03-25":        LocationGlobal,
	"gemini-2.0-flash-thinking-exp-01-21": LocationGlobal,
	"gemini-2.0-flash-001":                LocationGlobal,
	"gemini-2.0-flash-lite-001":           LocationGlobal,
	"gemini-1.5-flash-002":                LocationAsiaSoutheast,
	"gemini-1.5-pro-002":                  LocationGlobal,
}

// IsValidModel reports whether the model is in the registry.
func IsValidModel(model string) bool {
	_, ok := geminiModels[model]
	return ok
}

// ModelLocation returns the serving location for a model, or "" for an
// unknown model.
func ModelLocation(model string) string {
	return geminiModels[model]
}

// ModelInfo pairs a model name with its serving location.
type ModelInfo struct {
	Model    string `json:"model"`
	Location string `json:"location"`
}

// AllModels returns every registered model with its location.
func AllModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(geminiModels))
	for model, location := range geminiModels {
		out = append(out, ModelInfo{Model: model, Location: location})
	}
	return out
}
