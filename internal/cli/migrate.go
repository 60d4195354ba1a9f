package cli

import (
	"fmt"

	"github.com/law-makers/pricecrawl/internal/ui"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables and indexes",
	Long: `Creates the retailers, products and prices tables and their indexes when
missing. It is safe to run repeatedly; run also migrates before crawling.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer closeApp(cmd)

		a, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if err := a.Store.Migrate(cmd.Context()); err != nil {
			return err
		}
		if !a.Config.Quiet {
			fmt.Printf("%s schema ready (%s)\n", ui.Success("✓"), a.Store.Backend())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
