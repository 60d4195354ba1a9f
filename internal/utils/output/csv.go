package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/law-makers/pricecrawl/pkg/models"
)

var priceHeader = []string{
	"product_id", "retailer_id", "name", "brand", "weight_volume", "product_url", "image_url",
	"date", "original_price", "discounted_price", "price_per_unit", "discount_percentage", "discount_conditions",
}

// WritePricesCSV writes one row per product with its price observation.
// Missing values are empty cells.
func WritePricesCSV(w io.Writer, rows []models.ProductData) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(priceHeader); err != nil {
		return err
	}
	for _, r := range rows {
		p, pr := r.Product, r.Price
		date := ""
		if !pr.Date.IsZero() {
			date = pr.Date.Format(time.DateOnly)
		}
		record := []string{
			p.ID, p.RetailerID, p.Name, p.Brand, num(p.WeightVolume), p.ProductURL, p.ImageURL,
			date, num(pr.OriginalPrice), num(pr.DiscountedPrice), num(pr.PricePerUnit),
			num(pr.DiscountPercentage), str(pr.DiscountConditions),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SavePricesCSV writes rows to a CSV file. Returns an error on failure.
func SavePricesCSV(rows []models.ProductData, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := WritePricesCSV(file, rows); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func num(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
