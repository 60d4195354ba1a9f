package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/store"
	"github.com/law-makers/pricecrawl/internal/ui"
	"github.com/law-makers/pricecrawl/internal/utils/output"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/spf13/cobra"
)

var productOutput string

var productCmd = &cobra.Command{
	Use:   "product <sku>",
	Short: "Show a stored product and its latest price",
	Example: `  # Print a product
  pricecrawl product 7790070410123

  # Export it
  pricecrawl product 7790070410123 --output product.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runProduct,
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.Flags().StringVarP(&productOutput, "output", "o", "", "File path to save output (supports .json, .csv)")
}

func runProduct(cmd *cobra.Command, args []string) error {
	defer closeApp(cmd)

	a, err := requireApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sku := strings.TrimSpace(args[0])

	p, err := a.Store.GetProduct(ctx, sku)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("product %q not found", sku)
	}
	if err != nil {
		return err
	}

	data := models.ProductData{Product: *p}
	price, err := a.Store.LatestPrice(ctx, sku)
	switch {
	case err == nil:
		data.Price = *price
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	switch {
	case productOutput != "":
		return saveProduct(data, productOutput)
	case a.Config.JSONLog:
		return output.WriteJSON(os.Stdout, data)
	default:
		printProduct(os.Stdout, data)
		return nil
	}
}

func saveProduct(data models.ProductData, path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = output.SavePricesCSV([]models.ProductData{data}, path)
	default:
		err = output.SaveJSON(data, path)
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Printf("%s Saved to %s\n", ui.Success("✓"), path)
	return nil
}

func printProduct(w io.Writer, d models.ProductData) {
	p, pr := d.Product, d.Price
	fmt.Fprintf(w, "\n%s\n", ui.Bold(p.Name))
	fmt.Fprintf(w, "SKU:          %s\n", p.ID)
	fmt.Fprintf(w, "Retailer:     %s\n", p.RetailerID)
	if p.Brand != "" {
		fmt.Fprintf(w, "Brand:        %s\n", p.Brand)
	}
	if p.WeightVolume != nil {
		fmt.Fprintf(w, "Size:         %g\n", *p.WeightVolume)
	}
	fmt.Fprintf(w, "URL:          %s\n", p.ProductURL)

	if pr.ID == "" {
		fmt.Fprintf(w, "\n%s\n", ui.Info("No price recorded yet"))
		return
	}
	fmt.Fprintf(w, "\n%s %s\n", ui.Bold("Latest price"), pr.Date.Format(time.DateOnly))
	printAmount(w, "Price", pr.DiscountedPrice)
	printAmount(w, "List price", pr.OriginalPrice)
	printAmount(w, "Per unit", pr.PricePerUnit)
	if pr.DiscountConditions != nil {
		fmt.Fprintf(w, "Promotion:    %s\n", *pr.DiscountConditions)
	}
}

func printAmount(w io.Writer, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(w, "%-13s %.2f\n", label+":", *v)
}
