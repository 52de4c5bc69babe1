package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/terminal"
	"github.com/lorrc/armesa-dashboard/internal/adapters/secondary/armesa"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/services"
	"github.com/lorrc/armesa-dashboard/internal/infrastructure/logging"
)

type options struct {
	backend        string
	token          string
	eventType      string
	reconnectDelay time.Duration
	logLevel       string
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "feedtail",
		Short: "Follow the Armesa live ticket feed in the terminal",
		Long: "feedtail prints the recent ticket events of an Armesa backend and then " +
			"follows its live event stream, reconnecting whenever the stream drops.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.backend, "backend", os.Getenv("ARMESA_API_URL"), "backend base URL (env ARMESA_API_URL)")
	flags.StringVar(&opts.token, "token", os.Getenv("ARMESA_SERVICE_TOKEN"), "bearer token for the event endpoints (env ARMESA_SERVICE_TOKEN)")
	flags.StringVar(&opts.eventType, "type", "", "only show events of this type (ticket_open, ticket_claim, ticket_close, escalation, notes_update)")
	flags.DurationVar(&opts.reconnectDelay, "reconnect-delay", services.DefaultReconnectDelay, "pause before resubscribing after the stream drops")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "diagnostics written to stderr: debug, info, warn, error")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	filter := domain.EventType(opts.eventType)
	if !filter.IsFeedFilter() {
		return fmt.Errorf("unknown event type %q", opts.eventType)
	}
	if opts.backend == "" {
		return fmt.Errorf("--backend is required")
	}

	logger := logging.NewLogger(logging.Config{
		Level:       opts.logLevel,
		Format:      "text",
		Output:      cmd.ErrOrStderr(),
		ServiceName: "feedtail",
	})

	client, err := armesa.NewClient(armesa.Config{
		BaseURL:      opts.backend,
		ServiceToken: opts.token,
		Timeout:      10 * time.Second,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := terminal.NewRenderer(cmd.OutOrStdout(), filter)
	feed := services.NewEventStreamClient(client, renderer, logger, services.EventStreamClientConfig{
		ReconnectDelay: opts.reconnectDelay,
		SkipSnapshot:   true,
	})

	if err := feed.Refresh(ctx); err != nil {
		logger.Warn("could not load recent events", "error", err)
	}
	renderer.Snapshot(feed.Events(filter))

	feed.Start(ctx)
	<-ctx.Done()
	feed.Stop()
	return nil
}
