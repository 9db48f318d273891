package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extract runs the per-field cascade over a fetched document. Priority is
// strict: JSON-LD, then Open Graph / Twitter meta, then the site's own
// selectors, then generic tags, then URL-derived guesses.
func extract(doc *goquery.Document, site *Site, page *url.URL) Result {
	ld, hasLD := extractJSONLD(doc)

	name := ""
	desc := ""
	img := ""
	canonical := ""

	if hasLD {
		name = cleanText(ld.Name)
		desc = cleanText(ld.Description)
		img = normalizeImageURL(ld.ImageURL, page)
		canonical = strings.TrimSpace(ld.URL)
	}

	if name == "" {
		name = cleanText(metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`))
	}
	if desc == "" {
		desc = cleanText(metaContent(doc, `meta[property="og:description"]`, `meta[name="twitter:description"]`, `meta[name="description"]`))
	}
	if img == "" {
		img = normalizeImageURL(metaContent(doc, `meta[property="og:image"]`, `meta[name="twitter:image"]`), page)
	}
	if canonical == "" {
		canonical = strings.TrimSpace(metaContent(doc, `meta[property="og:url"]`))
	}
	if canonical == "" {
		if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
			canonical = strings.TrimSpace(href)
		}
	}

	if name == "" {
		name = cleanText(firstText(doc, site.NameSelectors))
	}
	if desc == "" {
		desc = cleanText(firstText(doc, site.DescSelectors))
	}
	if img == "" {
		img = normalizeImageURL(firstImageSrc(doc, site.ImageSelectors), page)
	}

	// Generic last-ditch tags.
	if name == "" {
		name = cleanText(doc.Find("h1").First().Text())
	}
	if name == "" {
		name = cleanText(doc.Find("title").First().Text())
	}
	if desc == "" {
		desc = cleanText(doc.Find("p").First().Text())
	}
	if img == "" {
		img = normalizeImageURL(firstImageSrc(doc, []string{"img"}), page)
	}

	extracted := name != "" || desc != "" || img != ""

	if name == "" {
		name = nameFromPath(page.Path)
	}
	if name == "" {
		name = "Product from " + site.Name
	}
	if desc == "" {
		desc = "Product details from " + site.Name
	}
	if canonical == "" {
		canonical = page.String()
	}

	// Overlong descriptions bloat the metadata document.
	if len(desc) > 2000 {
		desc = desc[:2000]
	}

	return Result{
		ProductName:        name,
		ProductDescription: desc,
		ProductImageURL:    img,
		CanonicalURL:       canonical,
		SiteName:           site.Name,
		Fallback:           !extracted,
	}
}

// metaContent returns the first non-empty content attribute among the
// given meta selectors.
func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if c := strings.TrimSpace(content); c != "" {
				return c
			}
		}
	}
	return ""
}

// firstText returns the first non-empty text among the selectors.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstImageSrc returns the first usable image reference among the
// selectors, preferring src over lazy-load attributes.
func firstImageSrc(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		found := ""
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"src", "data-src", "data-old-hires", "data-zoom-image"} {
				if v, ok := s.Attr(attr); ok {
					v = strings.TrimSpace(v)
					// Skip inline placeholders.
					if v != "" && !strings.HasPrefix(v, "data:") {
						found = v
						return false
					}
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}
