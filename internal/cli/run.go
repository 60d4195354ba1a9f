package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/batch"
	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/paginate"
	"github.com/law-makers/pricecrawl/internal/pipeline"
	"github.com/law-makers/pricecrawl/internal/ui"
	"github.com/law-makers/pricecrawl/internal/utils/output"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var reportPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the retailer's categories and record today's prices",
	Long: `Walks every category of the configured retailer, one listing page at a time,
and stores each product found together with today's price.

Product pages are rendered in parallel chunks of --max-concurrent. A product
already priced today keeps its first price; the product row is refreshed.`,
	Example: `  # Crawl the built-in retailer with defaults
  pricecrawl run

  # A quick sample of one category without Chrome
  pricecrawl run --engine static --max-pages 2 --category https://www.vea.com.ar/bebidas

  # Use a run file and keep a machine readable report
  pricecrawl run --config run.yaml --report report.json`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(runCmd)
	config.RegisterRunFlags(runCmd)
	runCmd.Flags().StringVar(&reportPath, "report", "", "Write the run report as JSON to this file")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	defer closeApp(cmd)

	a, err := requireApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	orch, err := a.Orchestrator(ctx)
	if err != nil {
		return err
	}

	cfg := a.Config
	if bar := newProgress(cfg); bar != nil {
		orch.OnResult = func(batch.Result) { _ = bar.Add(1) }
		orch.OnCategory = func(res paginate.CategoryResult) {
			bar.Describe(fmt.Sprintf("%s done", shortCategory(res.Category)))
		}
		defer bar.Finish()
	}

	report, runErr := orch.Run(ctx)

	view := newReportView(report)
	if reportPath != "" {
		if err := output.SaveJSON(view, reportPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	switch {
	case cfg.JSONLog:
		if err := output.WriteJSON(os.Stdout, view); err != nil {
			return err
		}
	case !cfg.Quiet:
		printReport(os.Stdout, view)
	}

	if runErr != nil {
		return fmt.Errorf("crawl stopped: %w", runErr)
	}
	return nil
}

// newProgress returns nil when output must stay machine readable
func newProgress(cfg *config.Config) *progressbar.ProgressBar {
	if cfg.JSONLog || cfg.Quiet {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionSetItsString("products"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

type categoryView struct {
	Category  string `json:"category"`
	Pages     int    `json:"pages"`
	Products  int    `json:"products"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

type reportView struct {
	RunID          string         `json:"run_id"`
	Retailer       string         `json:"retailer"`
	Categories     []categoryView `json:"categories"`
	Attempted      int            `json:"attempted"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	Seen           int            `json:"seen"`
	PricesRecorded int64          `json:"prices_recorded"`
	PricesSkipped  int64          `json:"prices_skipped"`
	Duration       string         `json:"duration"`
}

func newReportView(r *pipeline.Report) reportView {
	if r == nil {
		return reportView{}
	}
	v := reportView{
		RunID:          r.RunID,
		Retailer:       r.Retailer,
		Attempted:      r.Summary.Attempted,
		Succeeded:      r.Summary.Succeeded,
		Failed:         r.Summary.Failed,
		Seen:           r.Seen,
		PricesRecorded: r.PricesRecorded,
		PricesSkipped:  r.PricesSkipped,
		Duration:       r.Duration.Round(time.Millisecond).String(),
	}
	for _, c := range r.Categories {
		cv := categoryView{
			Category:  c.Category,
			Pages:     c.Pages,
			Products:  c.Links,
			Succeeded: c.Summary.Succeeded,
			Failed:    c.Summary.Failed,
			State:     c.State.String(),
		}
		if c.Err != nil {
			cv.Error = c.Err.Error()
		}
		v.Categories = append(v.Categories, cv)
	}
	return v
}

func printReport(w io.Writer, v reportView) {
	fmt.Fprintf(w, "\n%s %s %s\n", ui.Bold("Retailer:"), v.Retailer, ui.Info("run "+v.RunID))
	for _, c := range v.Categories {
		status := ui.Success("ok")
		if c.Error != "" {
			status = ui.Error("failed")
		}
		fmt.Fprintf(w, "  %-40s %3d pages %5d products %4d failed  %s\n",
			shortCategory(c.Category), c.Pages, c.Products, c.Failed, status)
		if c.Error != "" {
			fmt.Fprintf(w, "    %s\n", ui.Info(c.Error))
		}
	}
	fmt.Fprintf(w, "\n%s %d attempted, %d saved, %d failed\n",
		ui.Bold("Products:"), v.Attempted, v.Succeeded, v.Failed)
	fmt.Fprintf(w, "%s %d recorded, %d already priced today\n",
		ui.Bold("Prices:"), v.PricesRecorded, v.PricesSkipped)
	fmt.Fprintf(w, "%s %s\n", ui.Bold("Duration:"), v.Duration)
}

func shortCategory(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.Index(u, "/"); i >= 0 {
		return u[i:]
	}
	return u
}
