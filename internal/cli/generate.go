package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/extension"
	"github.com/xaenox/commentgen/internal/observer"
	"github.com/xaenox/commentgen/internal/prefstore"
	"github.com/xaenox/commentgen/internal/surface"
)

const emptyPage = "<html><body></body></html>"

type generateOptions struct {
	page      string
	item      string
	text      string
	tone      string
	provider  string
	model     string
	hint      string
	storePath string
	copy      bool
}

// NewGenerateCmd creates the 'generate' command, which runs one generation
// through the full client chain.
func NewGenerateCmd(env *Env) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a comment for a post",
		Long: `Generate one comment through the client chain: the page observer hands the
post text to a new surface, the surface sends it to the relay and the relay
calls the generation endpoint.

Preferences, the anonymous identity and the last comment are kept in the local
store between runs.`,
		Example: `  commentgen generate --text "We just launched v2!"
  commentgen generate --page feed.html --item 2 --tone friendly --copy
  commentgen generate --text "..." --hint "ask a question"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.storePath != "" {
				cfg.Client.StorePath = opts.storePath
			}
			if opts.page == "" && strings.TrimSpace(opts.text) == "" {
				return errors.New("either --page or --text is required")
			}

			store, err := prefstore.NewSQLiteStore(cfg.Client.StorePath)
			if err != nil {
				return err
			}
			defer store.Close()

			page, err := loadPage(opts.page)
			if err != nil {
				return err
			}

			inst := extension.New(store, page, env.clipboard(), extension.Config{
				Relay:   relayConfig(cfg),
				Surface: surfaceOptions(cfg),
				Rules:   observerRules(cfg),
			}, env.Logger)
			defer inst.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s, err := openSurface(ctx, inst, opts)
			if err != nil {
				return err
			}

			comment, err := runGenerate(ctx, s, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), comment)

			if opts.copy {
				if err := s.Copy(); err != nil {
					env.Logger.Warn("Failed to copy comment", zap.Error(err))
					return fmt.Errorf("failed to copy comment: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.page, "page", "", "Saved HTML page to read the post from")
	cmd.Flags().StringVar(&opts.item, "item", "", "Feed item id on the page (default: first item)")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Post text (overrides the page)")
	cmd.Flags().StringVar(&opts.tone, "tone", "", "Comment tone")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Model provider")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model")
	cmd.Flags().StringVar(&opts.hint, "hint", "", "Extra guidance for the model")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "Preference store path (overrides client.store_path)")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Copy the comment to the clipboard")

	return cmd
}

func loadPage(path string) (*observer.Page, error) {
	if path == "" {
		return observer.ParsePageString(emptyPage)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()
	return observer.ParsePage(f)
}

// openSurface either activates a feed item on the page or opens the surface
// directly, and waits until it has loaded.
func openSurface(ctx context.Context, inst *extension.Installation, opts generateOptions) (*surface.Surface, error) {
	if opts.page != "" {
		items := inst.Observer().Scan()
		if len(items) == 0 {
			return nil, errors.New("no feed items found on the page")
		}
		id := opts.item
		if id == "" {
			id = items[0].ID
		}
		if _, err := inst.Observer().Activate(ctx, id); err != nil {
			return nil, err
		}
	} else if _, err := inst.OpenSurface(ctx); err != nil {
		return nil, err
	}

	s := inst.Surface()
	select {
	case <-s.Ready():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, errors.New("surface did not finish loading")
	}
	return s, nil
}

func runGenerate(ctx context.Context, s *surface.Surface, opts generateOptions) (string, error) {
	if opts.text != "" {
		s.SetInput(opts.text)
	}
	if opts.provider != "" {
		if err := s.SetProvider(ctx, opts.provider); err != nil {
			return "", err
		}
	}
	if opts.model != "" {
		if err := s.SetModel(ctx, opts.model); err != nil {
			return "", err
		}
	}
	if opts.tone != "" {
		if err := s.SetTone(ctx, opts.tone); err != nil {
			return "", err
		}
	}
	s.SetHint(opts.hint)

	if err := s.Submit(ctx); err != nil {
		return "", err
	}
	view := s.View()
	if view.Result == nil {
		return "", errors.New("no comment generated")
	}
	return view.Result.Text, nil
}
