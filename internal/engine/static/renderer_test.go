package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/pkg/models"
)

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/almacen", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "pricecrawl-test" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, `<html><body>
			<a href="/arroz/p">Arroz</a>
			<a href="https://www.vea.com.ar/yerba/p">Yerba</a>
			<a>no href</a>
		</body></html>`)
	})
	mux.HandleFunc("/arroz/p", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<h1 class="name">  Arroz Largo Fino
				500 g </h1>
			<span class="sku">1001</span>
			<img class="img" src="/arquivos/arroz.jpg">
		</body></html>`)
	})
	mux.HandleFunc("/lang", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><span class="lang">%s</span></body></html>`, r.Header.Get("Accept-Language"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatic_ListingAndDetail(t *testing.T) {
	srv := newServer(t, new(int32))
	r := New(Options{UserAgent: "pricecrawl-test", NavTimeout: 5 * time.Second})
	defer r.Close()
	ctx := context.Background()

	p, err := r.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	defer p.Close()

	if err := p.Navigate(ctx, srv.URL+"/almacen"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := p.AutoScroll(ctx); err != nil {
		t.Fatalf("AutoScroll: %v", err)
	}
	links, err := p.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	want := []string{srv.URL + "/arroz/p", "https://www.vea.com.ar/yerba/p"}
	if fmt.Sprint(links) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, links)
	}

	if err := p.Navigate(ctx, srv.URL+"/arroz/p"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	fields, err := p.Extract(ctx, map[string]models.Selector{
		models.FieldName:  {Query: "h1.name"},
		models.FieldSKU:   {Query: ".sku"},
		models.FieldImage: {Query: "img.img", Attr: "src"},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields[models.FieldSKU] != "1001" {
		t.Errorf("unexpected sku: %q", fields[models.FieldSKU])
	}
	if fields[models.FieldImage] != srv.URL+"/arquivos/arroz.jpg" {
		t.Errorf("expected resolved image url, got %q", fields[models.FieldImage])
	}
	if p.URL() != srv.URL+"/arroz/p" {
		t.Errorf("unexpected page url: %s", p.URL())
	}
}

func TestStatic_NotFoundIsEmptyPage(t *testing.T) {
	srv := newServer(t, new(int32))
	r := New(Options{})
	p, _ := r.NewPage(context.Background())

	if err := p.Navigate(context.Background(), srv.URL+"/gone"); err != nil {
		t.Fatalf("a 404 listing should read as an empty page, got %v", err)
	}
	links, err := p.Links(context.Background())
	if err != nil || len(links) != 0 {
		t.Errorf("expected no links, got %v %v", links, err)
	}
}

func TestStatic_ServerErrorIsRetryable(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	r := New(Options{})
	p, _ := r.NewPage(context.Background())

	err := p.Navigate(context.Background(), srv.URL+"/down")
	if !errors.Is(err, engine.ErrNavigation) || !engine.IsRetryable(err) {
		t.Errorf("expected retryable navigation error, got %v", err)
	}
	if hits != 1 {
		t.Errorf("expected exactly one request, got %d", hits)
	}
}

func TestStatic_FailedNavigateDropsPreviousPage(t *testing.T) {
	srv := newServer(t, new(int32))
	r := New(Options{NavTimeout: 5 * time.Second})
	p, _ := r.NewPage(context.Background())

	if err := p.Navigate(context.Background(), srv.URL+"/arroz/p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Navigate(context.Background(), srv.URL+"/down"); err == nil {
		t.Fatal("expected the second navigation to fail")
	}
	if _, err := p.Links(context.Background()); err == nil {
		t.Error("expected no document after a failed navigation")
	}
	if _, err := p.Extract(context.Background(), map[string]models.Selector{"name": {Query: "h1"}}); err == nil {
		t.Error("expected no fields after a failed navigation")
	}
}

func TestStatic_Timeout(t *testing.T) {
	srv := newServer(t, new(int32))
	r := New(Options{NavTimeout: 100 * time.Millisecond})
	p, _ := r.NewPage(context.Background())

	start := time.Now()
	err := p.Navigate(context.Background(), srv.URL+"/slow")
	if !errors.Is(err, engine.ErrNavigation) {
		t.Errorf("expected navigation error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not honoured, took %v", time.Since(start))
	}
}

func TestStatic_ExtractBeforeNavigate(t *testing.T) {
	p, _ := New(Options{}).NewPage(context.Background())
	if _, err := p.Extract(context.Background(), nil); err == nil {
		t.Error("expected error without a loaded page")
	}
}

func TestStatic_ExtraHeaders(t *testing.T) {
	srv := newServer(t, new(int32))
	r := New(Options{NavTimeout: 5 * time.Second, Headers: map[string]string{"Accept-Language": "es-AR"}})
	defer r.Close()

	p, err := r.NewPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Navigate(context.Background(), srv.URL+"/lang"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.Extract(context.Background(), map[string]models.Selector{"lang": {Query: ".lang"}})
	if err != nil {
		t.Fatal(err)
	}
	if got["lang"] != "es-AR" {
		t.Errorf("expected the extra header to be sent, got %q", got["lang"])
	}
}
