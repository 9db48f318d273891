package scrape

import (
	"net/url"
	"strings"
)

// Site describes one supported retailer: the domains it answers on and the
// CSS selectors its product pages use, tried after the structured-data
// sources fail. Selector lists are ordered; layouts shift between site
// revamps, so older selectors stay as fallbacks.
type Site struct {
	Name           string
	Domains        []string
	NameSelectors  []string
	DescSelectors  []string
	ImageSelectors []string
}

// Matches reports whether host belongs to this site.
func (s *Site) Matches(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, d := range s.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// builtinSites are the recognized retailers. Scraping any other domain is
// rejected before a network call is made.
var builtinSites = []*Site{
	{
		Name:    "Amazon",
		Domains: []string{"amazon.com", "amazon.co.uk", "amazon.de"},
		NameSelectors: []string{
			"#productTitle",
			"span#title",
			"h1.a-size-large",
		},
		DescSelectors: []string{
			"#feature-bullets",
			"#productDescription",
			"#aplus",
		},
		ImageSelectors: []string{
			"#landingImage",
			"#imgBlkFront",
			"#main-image",
		},
	},
	{
		Name:    "Etsy",
		Domains: []string{"etsy.com"},
		NameSelectors: []string{
			"h1[data-buy-box-listing-title]",
			"h1.wt-text-body-01",
		},
		DescSelectors: []string{
			"div[data-product-details-description-text-content]",
			"#wt-content-toggle-product-details-read-more",
		},
		ImageSelectors: []string{
			"img[data-carousel-first-image]",
			".image-carousel-container img",
		},
	},
	{
		Name:    "Walmart",
		Domains: []string{"walmart.com"},
		NameSelectors: []string{
			"h1[itemprop=name]",
			"h1.prod-ProductTitle",
		},
		DescSelectors: []string{
			".about-desc",
			"div[data-testid=product-description]",
		},
		ImageSelectors: []string{
			"img[data-testid=hero-image]",
			".prod-hero-image img",
		},
	},
	{
		Name:    "eBay",
		Domains: []string{"ebay.com", "ebay.co.uk"},
		NameSelectors: []string{
			".x-item-title__mainTitle span",
			"h1#itemTitle",
		},
		DescSelectors: []string{
			".x-about-this-item",
			"#viTabs_0_is",
		},
		ImageSelectors: []string{
			".ux-image-carousel-item img",
			"#icImg",
		},
	},
}

// Registry resolves hosts to site profiles. Extra domains from config are
// served by a generic profile with no site-specific selectors, which lets
// deployments add shops and tests point at local fixtures.
type Registry struct {
	sites []*Site
	extra []*Site
}

// NewRegistry builds a registry of the built-in retailers plus any extra
// allowed domains.
func NewRegistry(extraDomains []string) *Registry {
	r := &Registry{sites: builtinSites}
	for _, d := range extraDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		r.extra = append(r.extra, &Site{
			Name:    siteTitle(d),
			Domains: []string{d},
		})
	}
	return r
}

// Lookup returns the site profile for rawURL's host, or false when the
// domain is unsupported.
func (r *Registry) Lookup(rawURL string) (*Site, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	host := u.Host
	if h := u.Hostname(); h != "" {
		host = h
	}
	for _, s := range r.sites {
		if s.Matches(host) {
			return s, true
		}
	}
	for _, s := range r.extra {
		// Extra domains may carry a port (local fixtures), so compare the
		// full host too.
		if s.Matches(host) || s.Matches(strings.ToLower(u.Host)) {
			return s, true
		}
	}
	return nil, false
}

// siteTitle derives a display name from a bare domain, e.g.
// "shop.example.com" -> "Shop.example.com".
func siteTitle(domain string) string {
	if domain == "" {
		return "Unknown"
	}
	return strings.ToUpper(domain[:1]) + domain[1:]
}
