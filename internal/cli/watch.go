package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xaenox/commentgen/internal/extension"
	"github.com/xaenox/commentgen/internal/observer"
	"github.com/xaenox/commentgen/internal/prefstore"
)

// NewWatchCmd creates the 'watch' command, which rescans a page file on a
// schedule and reports every feed item that gets an affordance.
func NewWatchCmd(env *Env) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch <page.html>",
		Short: "Watch a saved page for new feed items",
		Long: `Reload a saved HTML page on a cron schedule and inject a generate button into
every new feed item. Each new item is printed with its id and a preview.`,
		Example: `  commentgen watch feed.html
  commentgen watch feed.html --schedule "@every 5s"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if schedule == "" {
				schedule = cfg.Observer.Schedule
			}

			page, err := observer.ParsePageString(emptyPage)
			if err != nil {
				return err
			}

			store := prefstore.NewMemoryStore()
			defer store.Close()
			inst := extension.New(store, page, env.clipboard(), extension.Config{
				Relay:   relayConfig(cfg),
				Surface: surfaceOptions(cfg),
				Rules:   observerRules(cfg),
			}, env.Logger)
			defer inst.Close()

			out := cmd.OutOrStdout()
			inst.Observer().OnInject = func(item observer.Item) {
				fmt.Fprintf(out, "[%s] %s\n", item.ID, item.Preview)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = inst.Observer().Watch(ctx, observer.FileSource(args[0]), schedule)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", `Rescan schedule, e.g. "@every 2s" (overrides observer.schedule)`)
	return cmd
}
