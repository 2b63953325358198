package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/llm"
	"github.com/xaenox/commentgen/internal/observer"
	"github.com/xaenox/commentgen/internal/relay"
	"github.com/xaenox/commentgen/internal/surface"
	"github.com/xaenox/commentgen/pkg/config"
)

// Env is shared by every subcommand.
type Env struct {
	ConfigPath string
	Logger     *zap.Logger
	// Clipboard defaults to the system clipboard.
	Clipboard surface.Clipboard
}

func (e *Env) clipboard() surface.Clipboard {
	if e.Clipboard != nil {
		return e.Clipboard
	}
	return systemClipboard{}
}

func (e *Env) loadConfig() (*config.Config, error) {
	return config.LoadConfig(e.ConfigPath)
}

// NewRootCmd builds the command tree.
func NewRootCmd(env *Env, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "commentgen",
		Short: "AI comment assistant for social feed posts",
		Long: `commentgen drafts short comments for social feed posts.

It runs the generation endpoint, drives the client side against a saved page,
and watches a page for new feed items.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&env.ConfigPath, "config", "c", "config.yaml", "Path to the config file")

	root.AddCommand(NewServeCmd(env))
	root.AddCommand(NewGenerateCmd(env))
	root.AddCommand(NewWatchCmd(env))
	return root
}

func relayConfig(cfg *config.Config) relay.Config {
	return relay.Config{
		EndpointURL: cfg.Client.EndpointURL,
		AnonKey:     cfg.Client.AnonKey,
		Timeout:     cfg.Client.RequestTimeout,
	}
}

func surfaceOptions(cfg *config.Config) surface.Options {
	return surface.Options{
		PollAttempts: cfg.Client.PollAttempts,
		PollInterval: cfg.Client.PollInterval,
		StatusTTL:    cfg.Client.StatusTTL,
	}
}

// observerRules falls back to the built-in selectors for any list the
// config leaves empty.
func observerRules(cfg *config.Config) observer.Rules {
	rules := observer.DefaultRules()
	if len(cfg.Observer.ContainerSelectors) > 0 {
		rules.ContainerSelectors = cfg.Observer.ContainerSelectors
	}
	if len(cfg.Observer.ContentSelectors) > 0 {
		rules.ContentSelectors = cfg.Observer.ContentSelectors
	}
	return rules
}

func llmProviders(cfg *config.Config) map[string]llm.ProviderConfig {
	return map[string]llm.ProviderConfig{
		"openai": {
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		"openrouter": {
			APIKey:   cfg.OpenRouter.APIKey,
			BaseURL:  cfg.OpenRouter.BaseURL,
			Referrer: cfg.OpenRouter.Referrer,
			Title:    cfg.OpenRouter.Title,
		},
	}
}
