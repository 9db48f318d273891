// Package imagename holds the naming rules shared by uploads, the scraper
// and the reconciler: which extensions are images, how generated names get
// their random suffix, and how that suffix is stripped again.
package imagename

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// SuffixLen is the number of hex characters appended to generated names.
const SuffixLen = 8

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Allowed reports whether name carries a recognized image extension.
func Allowed(name string) bool {
	_, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ContentType returns the MIME type for name's extension.
// The second return is false for non-image extensions.
func ContentType(name string) (string, bool) {
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	return ct, ok
}

// Sanitize reduces s to a safe name fragment: lowercase, alphanumerics and
// single hyphens only. Returns "image" if nothing survives.
func Sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastHyphen := true
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "image"
	}
	if len(out) > 80 {
		out = out[:80]
	}
	return out
}

// Generate builds a stored filename from an original name: the sanitized
// base, an underscore, a random hex suffix, and the original extension.
func Generate(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := Sanitize(strings.TrimSuffix(original, filepath.Ext(original)))
	return fmt.Sprintf("%s_%s%s", base, randomSuffix(), ext)
}

// GenerateFromProduct builds a stored filename from a scraped product name
// and an image extension (with or without leading dot).
func GenerateFromProduct(productName, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s_%s%s", Sanitize(productName), randomSuffix(), strings.ToLower(ext))
}

func randomSuffix() string {
	buf := make([]byte, SuffixLen/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a fixed marker rather than panic in a request path.
		return "00000000"
	}
	return hex.EncodeToString(buf)
}

// Base strips the extension and the trailing random suffix from a filename.
// Our own generator appends "_<hex>"; blob providers commonly inject a
// "-<token>" of their own. The split happens on the last of either
// separator so both sides of a divergent pair reduce to the same base.
func Base(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	cut := strings.LastIndexAny(stem, "_-")
	if cut <= 0 {
		return stem
	}
	return stem[:cut]
}

// DisplayName turns a stored filename back into a human title: suffix
// stripped, separators spaced out.
func DisplayName(name string) string {
	base := Base(name)
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return strings.TrimSpace(base)
}
