package dom

import (
	"strings"
	"testing"

	"github.com/law-makers/pricecrawl/pkg/models"
)

const detailHTML = `<!DOCTYPE html>
<html>
<body>
	<h1 class="name">  Leche Entera
		1 L </h1>
	<span class="brand">La Serenisima</span>
	<img class="photo" src="/arquivos/ids/123/leche.jpg">
	<a href="/leche-entera/p">self</a>
	<a href="https://www.vea.com.ar/yogur/p#reviews">other</a>
	<a href="">empty</a>
</body>
</html>`

func TestFields(t *testing.T) {
	doc, err := Parse(detailHTML)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got := Fields(doc, "https://www.vea.com.ar/leche-entera/p", map[string]models.Selector{
		"name":    {Query: ".name"},
		"brand":   {Query: ".brand"},
		"image":   {Query: ".photo", Attr: "src"},
		"missing": {Query: ".does-not-exist"},
	})

	if strings.Join(strings.Fields(got["name"]), " ") != "Leche Entera 1 L" {
		t.Errorf("unexpected name %q", got["name"])
	}
	if got["brand"] != "La Serenisima" {
		t.Errorf("unexpected brand %q", got["brand"])
	}
	if got["image"] != "https://www.vea.com.ar/arquivos/ids/123/leche.jpg" {
		t.Errorf("expected resolved image url, got %q", got["image"])
	}
	if _, ok := got["missing"]; ok {
		t.Error("unmatched selector must be absent")
	}
}

func TestLinks(t *testing.T) {
	doc, err := Parse(detailHTML)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	links := Links(doc, "https://www.vea.com.ar/almacen?page=1")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0] != "https://www.vea.com.ar/leche-entera/p" {
		t.Errorf("unexpected first link %q", links[0])
	}
}
