// Package reconcile joins stored objects to metadata records when their
// names disagree. The upload path and the blob provider each append their
// own random token, so the same image can end up with two unrelated names;
// an ordered cascade of matching strategies papers over the divergence.
package reconcile

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/pixelcrate/pixelcrate/internal/imagename"
	"github.com/pixelcrate/pixelcrate/internal/metadata"
)

// Strategy tags which rule produced a match. Later strategies are strictly
// weaker than earlier ones; ties break by list order, not confidence.
type Strategy string

const (
	StrategyExact           Strategy = "exact"
	StrategyCaseInsensitive Strategy = "case-insensitive"
	StrategyBaseName        Strategy = "base-name"
	StrategyBaseContains    Strategy = "base-contains"
	StrategyPathSuffix      Strategy = "path-suffix"
	StrategyProductName     Strategy = "product-name"
	StrategyDescriptionURL  Strategy = "description-url"
)

// keyStrategy matches a requested name against one candidate key.
type keyStrategy struct {
	tag   Strategy
	match func(name, key string) bool
}

// keyStrategies are the name-to-name rules, applied in order over every
// candidate key before advancing to the next rule.
var keyStrategies = []keyStrategy{
	{StrategyExact, func(name, key string) bool {
		return name == key
	}},
	{StrategyCaseInsensitive, func(name, key string) bool {
		return strings.EqualFold(name, key)
	}},
	{StrategyBaseName, func(name, key string) bool {
		return imagename.Base(name) != "" && strings.EqualFold(imagename.Base(name), imagename.Base(key))
	}},
	{StrategyBaseContains, func(name, key string) bool {
		nb, kb := strings.ToLower(imagename.Base(name)), strings.ToLower(imagename.Base(key))
		if len(nb) < 3 || len(kb) < 3 {
			return false
		}
		return strings.Contains(nb, kb) || strings.Contains(kb, nb)
	}},
	{StrategyPathSuffix, func(name, key string) bool {
		return strings.HasSuffix(name, key) || strings.HasSuffix(key, name)
	}},
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// Decode undoes URL escaping on a requested filename. Falls back to the
// raw string when the escape sequence is malformed.
func Decode(name string) string {
	decoded, err := url.QueryUnescape(name)
	if err != nil {
		return name
	}
	return decoded
}

// ResolveKey finds the candidate key matching name, trying each strategy
// over all keys before weakening. Returns the matched key and the strategy
// that hit. Candidates are scanned in sorted order so a tie within one
// strategy always picks the same key.
func ResolveKey(name string, keys []string) (string, Strategy, bool) {
	name = Decode(name)
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, s := range keyStrategies {
		for _, key := range sorted {
			if s.match(name, key) {
				return key, s.tag, true
			}
		}
	}
	return "", "", false
}

// Match is the outcome of a record resolution.
type Match struct {
	Key      string          // the metadata key that matched
	Record   metadata.Record // possibly enriched (strategies 6 and 7)
	Strategy Strategy
	// Updated reports that the record was enriched by a weak strategy and
	// should be rewritten under the physical name so the next lookup hits
	// the exact rule.
	Updated bool
}

// ResolveRecord joins a stored object's physical name to a metadata
// record, running the full cascade. A miss is not an error; the object is
// just served undecorated.
func ResolveRecord(physicalName string, records map[string]metadata.Record) (Match, bool) {
	// Map iteration order is randomized; sort so tie-breaks are stable
	// from run to run (a weak match persists its winner).
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if key, tag, ok := ResolveKey(physicalName, keys); ok {
		return Match{Key: key, Record: records[key], Strategy: tag}, true
	}

	if m, ok := matchByProductName(physicalName, keys, records); ok {
		return m, true
	}

	return matchByDescriptionURL(physicalName, keys, records)
}

// matchByProductName cross-references the title derived from the physical
// name against each record's product name: exact normalized equality, or
// at least two shared significant words.
func matchByProductName(physicalName string, keys []string, records map[string]metadata.Record) (Match, bool) {
	title := imagename.DisplayName(physicalName)
	titleWords := significantWords(title)
	if len(titleWords) == 0 {
		return Match{}, false
	}

	for _, key := range keys {
		rec := records[key]
		if rec.ProductName == "" {
			continue
		}
		recWords := significantWords(rec.ProductName)
		if normalize(title) == normalize(rec.ProductName) || sharedWords(titleWords, recWords) >= 2 {
			return Match{Key: key, Record: rec, Strategy: StrategyProductName, Updated: true}, true
		}
	}
	return Match{}, false
}

// matchByDescriptionURL is the last resort: a record whose free-text
// description mentions the object's base name and embeds a usable URL.
func matchByDescriptionURL(physicalName string, keys []string, records map[string]metadata.Record) (Match, bool) {
	base := strings.ToLower(imagename.Base(physicalName))
	if len(base) < 3 {
		return Match{}, false
	}

	for _, key := range keys {
		rec := records[key]
		desc := strings.ToLower(rec.ProductDescription)
		if desc == "" || !strings.Contains(desc, base) {
			continue
		}
		if u := urlPattern.FindString(rec.ProductDescription); u != "" {
			enriched := rec
			if enriched.SourceURL == "" {
				enriched.SourceURL = u
			}
			return Match{Key: key, Record: enriched, Strategy: StrategyDescriptionURL, Updated: true}, true
		}
	}
	return Match{}, false
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true,
	"from": true, "pack": true, "set": true, "new": true,
}

func normalize(s string) string {
	return strings.Join(significantWords(s), " ")
}

func significantWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var words []string
	for _, f := range fields {
		if len(f) >= 3 && !stopwords[f] {
			words = append(words, f)
		}
	}
	return words
}

func sharedWords(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	n := 0
	for _, w := range b {
		if set[w] {
			n++
			delete(set, w)
		}
	}
	return n
}
