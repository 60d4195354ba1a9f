// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/pricecrawl/internal/app"
	"github.com/law-makers/pricecrawl/internal/config"
)

// skipApp marks commands that run without a database connection
const skipApp = "skip-app"

// initTimeout bounds opening the store at startup
const initTimeout = 30 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pricecrawl",
	Short: "Crawl retailer catalogs and record one price per product per day",
	Long: `Pricecrawl walks a retailer's category listings page by page, renders every
product page it finds and stores the product together with today's price.

Prices are recorded at most once per product and calendar day, so the crawl can
be scheduled as often as needed. Data goes to a local SQLite file unless a
PostgreSQL URL is configured.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx and exits 1 on failure.
// This is called by main.main().
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func init() {
	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		app.SetupLogging(cfg)

		if cmd.Annotations[skipApp] == "true" {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), initTimeout)
		defer cancel()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		closeApp(cmd)
	}

	// Register centralized flags
	config.RegisterFlags(rootCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(customHelpFunc)
}

// closeApp releases the command's application. PersistentPostRun is skipped
// when RunE fails, so commands that can fail defer this as well.
func closeApp(cmd *cobra.Command) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Error during shutdown")
	}
	SetApp(cmd, nil)
}

// requireApp returns the initialized application of cmd
func requireApp(cmd *cobra.Command) (*app.Application, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}
