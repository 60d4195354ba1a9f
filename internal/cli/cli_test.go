package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/law-makers/pricecrawl/internal/app"
	"github.com/law-makers/pricecrawl/internal/batch"
	"github.com/law-makers/pricecrawl/internal/paginate"
	"github.com/law-makers/pricecrawl/internal/pipeline"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/spf13/cobra"
)

func TestAppContext(t *testing.T) {
	cmd := &cobra.Command{}
	if GetAppFromCmd(cmd) != nil {
		t.Fatal("expected no app on a fresh command")
	}

	a := &app.Application{}
	SetApp(cmd, a)
	if GetAppFromCmd(cmd) != a {
		t.Error("expected the stored app back")
	}

	SetApp(cmd, nil)
	if GetAppFromCmd(cmd) != nil {
		t.Error("expected the app to be cleared")
	}
	if _, err := requireApp(cmd); err == nil {
		t.Error("expected requireApp to fail without an app")
	}
}

func TestAppContext_KeepsParent(t *testing.T) {
	type key struct{}
	cmd := &cobra.Command{}
	cmd.SetContext(context.WithValue(context.Background(), key{}, "v"))

	SetApp(cmd, &app.Application{})
	if cmd.Context().Value(key{}) != "v" {
		t.Error("expected the parent context values to survive")
	}
}

func TestReportView(t *testing.T) {
	report := &pipeline.Report{
		Retailer: "VEA",
		Categories: []paginate.CategoryResult{
			{
				Category: "https://www.vea.com.ar/almacen",
				Pages:    2,
				Links:    5,
				Summary:  batch.Summary{Attempted: 5, Succeeded: 4, Failed: 1},
				State:    paginate.Done,
			},
			{
				Category: "https://www.vea.com.ar/bebidas",
				State:    paginate.Done,
				Err:      errors.New("listing unreachable"),
			},
		},
		Summary:        batch.Summary{Attempted: 5, Succeeded: 4, Failed: 1},
		Seen:           5,
		PricesRecorded: 3,
		PricesSkipped:  1,
		Duration:       1500 * time.Millisecond,
	}

	v := newReportView(report)
	if v.Retailer != "VEA" || v.Attempted != 5 || v.PricesRecorded != 3 || v.Duration != "1.5s" {
		t.Errorf("unexpected totals: %+v", v)
	}
	if len(v.Categories) != 2 || v.Categories[0].State != "done" || v.Categories[1].Error == "" {
		t.Errorf("unexpected categories: %+v", v.Categories)
	}

	var buf bytes.Buffer
	printReport(&buf, v)
	out := buf.String()
	for _, want := range []string{"/almacen", "/bebidas", "listing unreachable", "5 attempted", "1 already priced today"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestReportView_Nil(t *testing.T) {
	if v := newReportView(nil); v.Retailer != "" || len(v.Categories) != 0 {
		t.Errorf("expected empty view, got %+v", v)
	}
}

func TestShortCategory(t *testing.T) {
	tests := map[string]string{
		"https://www.vea.com.ar/almacen":        "/almacen",
		"https://www.vea.com.ar/bebidas?page=2": "/bebidas?page=2",
		"www.vea.com.ar":                        "www.vea.com.ar",
	}
	for in, want := range tests {
		if got := shortCategory(in); got != want {
			t.Errorf("shortCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintProduct(t *testing.T) {
	price := 1999.5
	d := models.ProductData{
		Product: models.Product{ID: "123", RetailerID: "VEA", Name: "Aceite 900 ml", ProductURL: "https://www.vea.com.ar/aceite/p"},
		Price: models.Price{
			ID:              "123_1714521600000",
			DiscountedPrice: &price,
			Date:            time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	printProduct(&buf, d)
	out := buf.String()
	if !strings.Contains(out, "1999.50") || !strings.Contains(out, "2024-05-01") {
		t.Errorf("expected price and date in output:\n%s", out)
	}

	buf.Reset()
	d.Price = models.Price{}
	printProduct(&buf, d)
	if !strings.Contains(buf.String(), "No price recorded yet") {
		t.Errorf("expected missing price note:\n%s", buf.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"run"}, {"migrate"}, {"product"}, {"db", "set-url"}, {"db", "clear-url"}} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("expected command %v to be registered", path)
		}
	}
	if cmd, _, _ := rootCmd.Find([]string{"db", "set-url"}); cmd.Annotations[skipApp] != "true" {
		t.Error("db set-url must not open the database")
	}
}
