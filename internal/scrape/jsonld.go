package scrape

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// productData is what JSON-LD extraction yields; empty fields mean the
// document had no usable value.
type productData struct {
	Name        string
	Description string
	ImageURL    string
	URL         string
}

// extractJSONLD walks every <script type="application/ld+json"> block
// looking for a schema.org Product node, including nodes nested inside
// @graph arrays. First Product wins.
func extractJSONLD(doc *goquery.Document) (productData, bool) {
	var out productData
	found := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(s.Text()), &node); err != nil {
			// Retail pages routinely ship broken JSON-LD; skip the block.
			return true
		}
		if p, ok := findProduct(node); ok {
			out = p
			found = true
			return false
		}
		return true
	})

	return out, found
}

// findProduct recursively searches a decoded JSON-LD node for a Product.
func findProduct(node any) (productData, bool) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if p, ok := findProduct(item); ok {
				return p, true
			}
		}
	case map[string]any:
		if isProductType(v["@type"]) {
			return productFromMap(v), true
		}
		if graph, ok := v["@graph"]; ok {
			if p, ok := findProduct(graph); ok {
				return p, true
			}
		}
	}
	return productData{}, false
}

// isProductType handles "@type" being a string or a list of strings.
func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func productFromMap(m map[string]any) productData {
	return productData{
		Name:        stringField(m["name"]),
		Description: stringField(m["description"]),
		ImageURL:    imageField(m["image"]),
		URL:         stringField(m["url"]),
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// imageField accepts the three shapes schema.org allows for "image":
// a bare URL, a list of URLs, or an ImageObject.
func imageField(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []any:
		for _, item := range img {
			if u := imageField(item); u != "" {
				return u
			}
		}
	case map[string]any:
		if u := stringField(img["url"]); u != "" {
			return u
		}
		return stringField(img["contentUrl"])
	}
	return ""
}
