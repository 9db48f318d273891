package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureServer serves a product page and its image, and returns a
// scraper whose registry allows the server's host.
func fixtureServer(t *testing.T, page string) (*Scraper, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return New(NewRegistry([]string{u.Host})), srv
}

func TestScrapeUnsupportedDomainFailsWithoutNetwork(t *testing.T) {
	s := New(NewRegistry(nil))
	// An unroutable host: if the allow-list check leaked a network call,
	// this test would hang or fail on DNS instead of the sentinel.
	_, err := s.Scrape(context.Background(), "https://shop.invalid/p/1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDomain), "err = %v", err)
}

func TestScrapeMalformedURL(t *testing.T) {
	s := New(NewRegistry(nil))
	for _, raw := range []string{"", "not a url", "ftp://amazon.com/p", "/relative"} {
		_, err := s.Scrape(context.Background(), raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestScrapeExtractsJSONLD(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
	{"@type":"Product","name":"Widget","description":"Desc.","image":"/img.jpg"}
	</script></head></html>`
	s, srv := fixtureServer(t, page)

	r, err := s.Scrape(context.Background(), srv.URL+"/p/widget-product")
	require.NoError(t, err)
	assert.Equal(t, "Widget", r.ProductName)
	assert.Equal(t, srv.URL+"/img.jpg", r.ProductImageURL)
	assert.False(t, r.Fallback)
}

func TestScrapeBlockedPageFallsBack(t *testing.T) {
	s, srv := fixtureServer(t, "<html><title>Access Denied</title></html>")

	r, err := s.Scrape(context.Background(), srv.URL+"/p/rocket-skates")
	require.NoError(t, err, "a block page degrades, it does not fail")
	assert.True(t, r.Fallback)
	assert.Equal(t, "Rocket Skates", r.ProductName, "name must be guessed from the URL path")
}

func TestScrapeHTTPErrorFallsBack(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusServiceUnavailable} {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		u, err := url.Parse(srv.URL)
		require.NoError(t, err)
		s := New(NewRegistry([]string{u.Host}))

		r, err := s.Scrape(context.Background(), srv.URL+"/p/turbo-encabulator")
		require.NoError(t, err, "HTTP %d must degrade, not fail", status)
		assert.True(t, r.Fallback, "HTTP %d", status)
		assert.Equal(t, "Turbo Encabulator", r.ProductName, "name must be guessed from the URL path")
	}
}

func TestScrapeUnreachableHostFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close() // connection refused from here on

	s := New(NewRegistry([]string{u.Host}))
	_, err = s.Scrape(context.Background(), srv.URL+"/p/1")
	assert.Error(t, err, "a dead host is a hard failure, not a fallback")
}

func TestDownloadImage(t *testing.T) {
	s, srv := fixtureServer(t, "<html></html>")

	data, ext, err := s.DownloadImage(context.Background(), srv.URL+"/img.jpg", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "jpg", ext)
}

func TestDownloadImageFailureIsIsolated(t *testing.T) {
	s, srv := fixtureServer(t, "<html></html>")

	_, _, err := s.DownloadImage(context.Background(), srv.URL+"/missing.png", "")
	assert.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry([]string{"shop.example.com", "127.0.0.1:9090"})

	tests := []struct {
		url      string
		wantSite string
		wantOK   bool
	}{
		{"https://www.amazon.com/dp/B000", "Amazon", true},
		{"https://amazon.co.uk/dp/B000", "Amazon", true},
		{"https://www.etsy.com/listing/1", "Etsy", true},
		{"https://www.walmart.com/ip/1", "Walmart", true},
		{"https://www.ebay.com/itm/1", "eBay", true},
		{"https://shop.example.com/p/1", "Shop.example.com", true},
		{"http://127.0.0.1:9090/p/1", "127.0.0.1:9090", true},
		{"http://127.0.0.1:9091/p/1", "", false},
		{"https://evil.example.net/p/1", "", false},
		{"https://notamazon.com/dp/B000", "", false},
	}

	for _, tt := range tests {
		site, ok := r.Lookup(tt.url)
		require.Equal(t, tt.wantOK, ok, "url=%s", tt.url)
		if ok {
			assert.Equal(t, tt.wantSite, site.Name, "url=%s", tt.url)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		want        string
	}{
		{"image/png", "https://c/x", "png"},
		{"image/webp", "https://c/x", "webp"},
		{"image/jpeg", "https://c/x", "jpg"},
		{"", "https://c/x.PNG", "png"},
		{"", "https://c/x", "jpg"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.contentType, tt.url); got != tt.want {
			t.Errorf("extensionFor(%q, %q) = %q, want %q", tt.contentType, tt.url, got, tt.want)
		}
	}
}
