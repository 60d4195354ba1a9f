package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
)

func TestProxyPool(t *testing.T) {
	proxies := []string{"p1", "p2", "p3"}
	pool := NewProxyPool(proxies)

	// Test rotation
	for _, want := range []string{"p1", "p2", "p3", "p1"} {
		if p := pool.GetNext(); p != want {
			t.Errorf("Expected %s, got %s", want, p)
		}
	}

	pool.MarkFailed("p2")

	// Should skip p2
	if p := pool.GetNext(); p != "p3" {
		t.Errorf("Expected p3 (skipping p2), got %s", p)
	}
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}
	if p := pool.GetNext(); p != "p3" {
		t.Errorf("Expected p3, got %s", p)
	}

	pool.MarkHealthy("p2")

	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}
	if p := pool.GetNext(); p != "p2" {
		t.Errorf("Expected p2, got %s", p)
	}
}

func TestProxyPool_CooldownExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := NewProxyPool([]string{"p1", "p2"})
	pool.now = func() time.Time { return now }

	pool.MarkFailed("p1")
	if p := pool.GetNext(); p != "p2" {
		t.Errorf("Expected p2 while p1 cools down, got %s", p)
	}

	now = now.Add(DefaultCooldown + time.Second)
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1 after cooldown, got %s", p)
	}
}

func TestProxyPool_AllFailed(t *testing.T) {
	pool := NewProxyPool([]string{"p1", "p2", " "})
	if pool.Len() != 2 {
		t.Fatalf("Expected blank entries dropped, got %d", pool.Len())
	}
	pool.MarkFailed("p1")
	pool.MarkFailed("p2")

	if p := pool.GetNext(); p == "" {
		t.Error("Expected a proxy even when all are cooling down")
	}
}

func TestProxyFunc(t *testing.T) {
	pool := NewProxyPool([]string{"http://10.0.0.1:3128", "http://10.0.0.2:3128"})
	fn := pool.ProxyFunc()

	req, _ := http.NewRequest(http.MethodGet, "https://www.vea.com.ar/almacen", nil)
	u, err := fn(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Host != "10.0.0.1:3128" {
		t.Errorf("Expected first proxy, got %s", u.Host)
	}
	if got, _ := req.Context().Value(colly.ProxyURLKey).(string); got != "http://10.0.0.1:3128" {
		t.Errorf("Expected proxy recorded on request, got %q", got)
	}

	empty := NewProxyPool(nil).ProxyFunc()
	if u, err := empty(req); u != nil || err != nil {
		t.Errorf("Expected direct connection with no proxies, got %v %v", u, err)
	}
}
