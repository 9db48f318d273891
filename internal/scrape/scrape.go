// Package scrape extracts product details (name, description, primary
// image) from pages on a small set of recognized e-commerce sites. It
// degrades rather than fails: structured data first, then meta tags, then
// site-specific selectors, then generic tags, then guesses derived from
// the URL itself. Only an unsupported domain, a malformed URL or an
// unreachable host is a hard failure; a reachable page that refuses us
// degrades to URL-derived defaults.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pixelcrate/pixelcrate/internal/logging"
)

// ErrUnsupportedDomain rejects URLs outside the allow-list before any
// network call.
var ErrUnsupportedDomain = errors.New("unsupported product domain")

// errUpstreamStatus tags a non-2xx response from a host we did reach.
// Anti-bot layers answer 403/503 with a challenge body; that is fallback
// territory, not a failure.
var errUpstreamStatus = errors.New("upstream status")

const (
	fetchTimeout    = 30 * time.Second
	maxBodyBytes    = 4 << 20 // 4 MiB of HTML is plenty for any product page
	maxImageBytes   = 10 << 20
	browserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptLanguage  = "en-US,en;q=0.9"
	downloadTimeout = 30 * time.Second
)

var scrapeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pixelcrate_scrape_total",
	Help: "Scrape attempts by outcome.",
}, []string{"outcome"})

// Result is the best-effort outcome of a scrape. Name and description are
// never empty: unresolved fields get "Product from <Site>" defaults.
type Result struct {
	ProductName        string
	ProductDescription string
	ProductImageURL    string
	CanonicalURL       string
	SiteName           string
	// Fallback reports that the page was blocked or unusable and the
	// fields are URL-derived guesses.
	Fallback bool
}

// Scraper fetches and extracts product pages for allow-listed domains.
type Scraper struct {
	client   *http.Client
	registry *Registry
	logger   *logging.Logger
}

// New builds a scraper over the given registry.
func New(registry *Registry) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		registry: registry,
		logger:   logging.NewComponentLogger("scrape"),
	}
}

// Scrape validates, fetches and extracts a product page. The domain check
// happens before any network I/O.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (Result, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{}, fmt.Errorf("malformed product URL %q", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{}, fmt.Errorf("product URL must use http or https, got %q", parsed.Scheme)
	}

	site, ok := s.registry.Lookup(parsed.String())
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedDomain, parsed.Hostname())
	}

	body, err := s.fetch(ctx, parsed.String())
	if err != nil {
		// Non-2xx responses and timeouts degrade like block pages; only
		// DNS and connection failures surface as errors.
		if errors.Is(err, errUpstreamStatus) || isTimeout(err) {
			s.logger.Warn("fetch %s degraded (%v), using URL-derived fallback", parsed.Hostname(), err)
			scrapeOutcomes.WithLabelValues("blocked").Inc()
			return fallbackResult(site, parsed), nil
		}
		scrapeOutcomes.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("fetch %s: %w", parsed.Hostname(), err)
	}

	if isBlockPage(body) {
		s.logger.Warn("block page detected on %s, using URL-derived fallback", parsed.Hostname())
		scrapeOutcomes.WithLabelValues("blocked").Inc()
		return fallbackResult(site, parsed), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		scrapeOutcomes.WithLabelValues("fallback").Inc()
		return fallbackResult(site, parsed), nil
	}

	result := extract(doc, site, parsed)
	if result.Fallback {
		scrapeOutcomes.WithLabelValues("fallback").Inc()
	} else {
		scrapeOutcomes.WithLabelValues("extracted").Inc()
	}
	return result, nil
}

// fetch performs the single GET with browser-like headers. Anti-bot
// layers reject the default Go user agent outright.
func (s *Scraper) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", errUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(body), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// blockMarkers short-circuit extraction; the page body is a challenge,
// not a product.
var blockMarkers = []string{
	"access denied",
	"request blocked",
	"attention required",
	"cf-challenge",
	"captcha-delivery",
	"are you a robot",
	"enable javascript and cookies",
}

func isBlockPage(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// DownloadImage fetches a scraped image URL in its own error domain;
// callers treat failure as "no image", not a failed scrape. Returns the
// bytes and the file extension implied by the response or URL.
func (s *Scraper) DownloadImage(ctx context.Context, imageURL, referer string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create image request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	ext := extensionFor(resp.Header.Get("Content-Type"), imageURL)
	return data, ext, nil
}

// extensionFor picks an image extension from the Content-Type header,
// falling back to the URL path, defaulting to jpg.
func extensionFor(contentType, imageURL string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "jpg"
	}
	if u, err := url.Parse(imageURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".png":
			return "png"
		case ".webp":
			return "webp"
		case ".jpg", ".jpeg":
			return "jpg"
		}
	}
	return "jpg"
}

// fallbackResult fills a Result from nothing but the URL: the last
// meaningful path segment becomes the guessed product name.
func fallbackResult(site *Site, u *url.URL) Result {
	name := nameFromPath(u.Path)
	if name == "" {
		name = "Product from " + site.Name
	}
	return Result{
		ProductName:        name,
		ProductDescription: "Product details from " + site.Name,
		CanonicalURL:       u.String(),
		SiteName:           site.Name,
		Fallback:           true,
	}
}

// nameFromPath guesses a product name from URL path segments, skipping
// IDs and routing tokens like "dp" or "itm".
func nameFromPath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			seg = segments[i]
		}
		if !looksLikeSlug(seg) {
			continue
		}
		words := strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' || r == '+' })
		return titleCase(strings.Join(words, " "))
	}
	return ""
}

// looksLikeSlug rejects numeric IDs, short routing tokens and query-ish
// segments.
func looksLikeSlug(seg string) bool {
	if len(seg) < 4 || strings.ContainsAny(seg, "=?&.") {
		return false
	}
	letters, digits := 0, 0
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	return letters > digits
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// cleanText entity-unescapes and collapses whitespace in extracted text.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// normalizeImageURL makes a scraped image reference absolute and strips
// tracking query strings. Protocol-relative references get https;
// root-relative ones get the page's origin.
func normalizeImageURL(raw string, page *url.URL) string {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case strings.HasPrefix(raw, "/"):
		raw = page.Scheme + "://" + page.Host + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
