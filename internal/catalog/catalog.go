// Package catalog lists the tones, providers and models a user can pick.
package catalog

import "github.com/xaenox/commentgen/internal/models"

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"

	DefaultProvider = ProviderOpenAI
	DefaultTone     = "professional"
)

var Tones = []string{
	"professional",
	"friendly",
	"enthusiastic",
	"insightful",
	"supportive",
	"humorous",
}

var providerModels = map[string][]string{
	ProviderOpenAI: {
		"gpt-4.1-2025-04-14",
		"gpt-4o-mini",
		"gpt-4o",
	},
	ProviderOpenRouter: {
		"openai/gpt-5-nano",
		"google/gemini-2.5-flash-lite",
		"deepseek/deepseek-r1-0528:free",
	},
}

// Providers returns provider names in display order.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderOpenRouter}
}

// IsProvider reports whether p is a known provider.
func IsProvider(p string) bool {
	_, ok := providerModels[p]
	return ok
}

// Models returns the model list of a provider. Unknown providers fall back to
// the default provider's list.
func Models(provider string) []string {
	ms, ok := providerModels[provider]
	if !ok {
		ms = providerModels[DefaultProvider]
	}
	out := make([]string, len(ms))
	copy(out, ms)
	return out
}

func IsTone(tone string) bool {
	for _, t := range Tones {
		if t == tone {
			return true
		}
	}
	return false
}

// HasModel reports whether model belongs to the provider's model list.
func HasModel(provider, model string) bool {
	for _, m := range Models(provider) {
		if m == model {
			return true
		}
	}
	return false
}

// Defaults returns the preferences used before the user picks anything.
func Defaults() models.Preferences {
	return models.Preferences{
		Tone:     DefaultTone,
		Provider: DefaultProvider,
		Model:    Models(DefaultProvider)[0],
	}
}

// Normalize repairs stored preferences so that the model always belongs to
// the provider's list.
func Normalize(p models.Preferences) models.Preferences {
	if !IsTone(p.Tone) {
		p.Tone = DefaultTone
	}
	if !IsProvider(p.Provider) {
		p.Provider = DefaultProvider
	}
	if !HasModel(p.Provider, p.Model) {
		p.Model = Models(p.Provider)[0]
	}
	return p
}
