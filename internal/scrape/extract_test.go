package scrape

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func pageURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}

var genericSite = &Site{Name: "Example", Domains: []string{"example.com"}}

func TestExtractJSONLDProduct(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@context":"https://schema.org","@type":"Product","name":"Widget","description":"A fine widget.","image":"https://cdn.example.com/img.jpg?w=500","url":"https://www.example.com/p/widget"}
	</script></head><body><h1>Wrong Name</h1></body></html>`

	r := extract(docFrom(t, html), genericSite, pageURL(t, "https://www.example.com/p/123"))
	if r.ProductName != "Widget" {
		t.Errorf("ProductName = %q, want Widget", r.ProductName)
	}
	if r.ProductDescription != "A fine widget." {
		t.Errorf("ProductDescription = %q", r.ProductDescription)
	}
	if r.ProductImageURL != "https://cdn.example.com/img.jpg" {
		t.Errorf("ProductImageURL = %q, want query stripped", r.ProductImageURL)
	}
	if r.CanonicalURL != "https://www.example.com/p/widget" {
		t.Errorf("CanonicalURL = %q", r.CanonicalURL)
	}
	if r.Fallback {
		t.Error("Fallback = true for a fully extracted page")
	}
}

func TestExtractJSONLDGraphAndTypeList(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@graph":[{"@type":"BreadcrumbList"},{"@type":["Thing","Product"],"name":"Nested Widget","image":{"@type":"ImageObject","url":"//cdn.example.com/n.png"}}]}
	</script></head></html>`

	r := extract(docFrom(t, html), genericSite, pageURL(t, "https://www.example.com/p/1"))
	if r.ProductName != "Nested Widget" {
		t.Errorf("ProductName = %q, want Nested Widget", r.ProductName)
	}
	if r.ProductImageURL != "https://cdn.example.com/n.png" {
		t.Errorf("ProductImageURL = %q, want protocol-relative resolved", r.ProductImageURL)
	}
}

func TestExtractIgnoresBrokenJSONLD(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">{broken</script>
	<meta property="og:title" content="Meta Widget"/>
	</head></html>`

	r := extract(docFrom(t, html), genericSite, pageURL(t, "https://www.example.com/p/1"))
	if r.ProductName != "Meta Widget" {
		t.Errorf("ProductName = %q, want fallthrough to og:title", r.ProductName)
	}
}

func TestExtractOpenGraphFallback(t *testing.T) {
	html := `<html><head>
	<meta property="og:title" content="OG &amp; Widget"/>
	<meta property="og:description" content="From the meta tags."/>
	<meta property="og:image" content="/images/hero.webp"/>
	</head></html>`

	r := extract(docFrom(t, html), genericSite, pageURL(t, "https://shop.example.com/p/1"))
	if r.ProductName != "OG & Widget" {
		t.Errorf("ProductName = %q, want entities unescaped", r.ProductName)
	}
	if r.ProductImageURL != "https://shop.example.com/images/hero.webp" {
		t.Errorf("ProductImageURL = %q, want root-relative resolved against origin", r.ProductImageURL)
	}
}

func TestExtractSiteSelectors(t *testing.T) {
	site := &Site{
		Name:           "Shop",
		Domains:        []string{"shop.test"},
		NameSelectors:  []string{"#productTitle"},
		DescSelectors:  []string{"#productDescription"},
		ImageSelectors: []string{"#landingImage"},
	}
	html := `<html><body>
	<span id="productTitle">  Selector Widget  </span>
	<div id="productDescription">Sold by selectors.</div>
	<img id="landingImage" src="https://cdn.shop.test/w.jpg"/>
	</body></html>`

	r := extract(docFrom(t, html), site, pageURL(t, "https://shop.test/p/1"))
	if r.ProductName != "Selector Widget" {
		t.Errorf("ProductName = %q", r.ProductName)
	}
	if r.ProductDescription != "Sold by selectors." {
		t.Errorf("ProductDescription = %q", r.ProductDescription)
	}
	if r.ProductImageURL != "https://cdn.shop.test/w.jpg" {
		t.Errorf("ProductImageURL = %q", r.ProductImageURL)
	}
}

func TestExtractGenericTags(t *testing.T) {
	html := `<html><head><title>Title Widget | Example</title></head>
	<body><h1>H1 Widget</h1><p>First paragraph.</p><img src="/first.png"/></body></html>`

	r := extract(docFrom(t, html), genericSite, pageURL(t, "https://www.example.com/p/1"))
	if r.ProductName != "H1 Widget" {
		t.Errorf("ProductName = %q, want first h1", r.ProductName)
	}
	if r.ProductDescription != "First paragraph." {
		t.Errorf("ProductDescription = %q", r.ProductDescription)
	}
	if r.ProductImageURL != "https://www.example.com/first.png" {
		t.Errorf("ProductImageURL = %q", r.ProductImageURL)
	}
}

func TestExtractDefaultsWhenEmpty(t *testing.T) {
	r := extract(docFrom(t, "<html><body></body></html>"), genericSite, pageURL(t, "https://www.example.com/x/y1"))
	if r.ProductName != "Product from Example" {
		t.Errorf("ProductName = %q, want default", r.ProductName)
	}
	if r.ProductDescription != "Product details from Example" {
		t.Errorf("ProductDescription = %q, want default", r.ProductDescription)
	}
	if !r.Fallback {
		t.Error("Fallback = false for an empty page")
	}
}

func TestExtractSkipsDataURIPlaceholders(t *testing.T) {
	html := `<html><body>
	<img src="data:image/gif;base64,R0lGOD" data-src="https://cdn.example.com/lazy.jpg"/>
	</body></html>`

	r := extract(docFrom(t, html), genericSite, pageURL(t, "https://www.example.com/p/1"))
	if r.ProductImageURL != "https://cdn.example.com/lazy.jpg" {
		t.Errorf("ProductImageURL = %q, want lazy-load attribute", r.ProductImageURL)
	}
}

func TestIsBlockPage(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"<html><title>Access Denied</title></html>", true},
		{"<html>Attention Required! | Cloudflare</html>", true},
		{"please confirm you are you a robot", true},
		{"<html><h1>Widget</h1></html>", false},
	}
	for _, tt := range tests {
		if got := isBlockPage(tt.body); got != tt.want {
			t.Errorf("isBlockPage(%.30q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/dp/B0ABCD1234/acme-rocket-skates", "Acme Rocket Skates"},
		{"/acme-rocket-skates/dp/B0ABCD1234", "Acme Rocket Skates"},
		{"/itm/123456789", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := nameFromPath(tt.path); got != tt.want {
			t.Errorf("nameFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNormalizeImageURL(t *testing.T) {
	page := pageURL(t, "https://www.example.com/p/1")
	tests := []struct {
		in   string
		want string
	}{
		{"//cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"/a.jpg", "https://www.example.com/a.jpg"},
		{"https://cdn.example.com/a.jpg?utm=1#frag", "https://cdn.example.com/a.jpg"},
		{"javascript:alert(1)", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeImageURL(tt.in, page); got != tt.want {
			t.Errorf("normalizeImageURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
