package llm

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/catalog"
)

const DefaultModel = "gpt-4o-mini"

// ProviderConfig holds credentials for one provider.
type ProviderConfig struct {
	APIKey   string
	BaseURL  string
	Referrer string
	Title    string
}

// Factory creates clients for the provider a request names.
type Factory struct {
	Providers    map[string]ProviderConfig
	DefaultModel string
	MaxTokens    int
	Temperature  float64
	HTTPClient   *http.Client
	logger       *zap.Logger
}

func NewFactory(providers map[string]ProviderConfig, logger *zap.Logger) *Factory {
	return &Factory{
		Providers:    providers,
		DefaultModel: DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		logger:       logger,
	}
}

// Client returns a client for provider and model. An empty or unknown
// provider selects the default one, an empty model the default model.
func (f *Factory) Client(provider, model string) (Client, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !catalog.IsProvider(provider) {
		provider = catalog.DefaultProvider
	}
	if model == "" {
		model = f.DefaultModel
	}

	cfg := f.Providers[provider]
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrMissingCredential)
	}

	return NewOpenAIClient(OpenAIOptions{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       model,
		MaxTokens:   f.MaxTokens,
		Temperature: f.Temperature,
		Referrer:    cfg.Referrer,
		Title:       cfg.Title,
		HTTPClient:  f.HTTPClient,
	}, f.logger), nil
}
