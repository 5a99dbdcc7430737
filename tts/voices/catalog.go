// Package voices turns raw engine voice descriptors into a display-ready,
// offline-only catalog. Engine identifiers are opaque strings like
// "en-us-x-sfg#female_2-local"; the builder derives a human name from the
// tokens it can recognize and labels each entry with its locale's display
// language.
package voices

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Descriptor is a raw voice as reported by the synthesis engine.
type Descriptor struct {
	ID              string // opaque engine identifier
	Name            string // raw engine name, often identical to ID
	Locale          string // BCP 47 tag, e.g. "en-US"
	NetworkRequired bool   // voice needs connectivity to synthesize
	Installed       bool   // voice data is present on this machine
}

// Entry is a catalog row. ID is kept only for later SetVoice lookups.
type Entry struct {
	ID            string
	DisplayName   string
	LanguageLabel string
}

// genderToken matches a gender keyword with an optional trailing number,
// as in "female_2" or "male1". "female" is listed first so it is never
// half-matched as "male".
var genderToken = regexp.MustCompile(`(?i)(female|male)[_-]?(\d*)`)

// qualityKeywords map identifier fragments to display labels, checked in
// this order.
var qualityKeywords = []struct {
	token string
	label string
}{
	{"hq", "High Quality"},
	{"premium", "Premium"},
	{"enhanced", "Enhanced"},
	{"standard", "Standard"},
	{"compact", "Compact"},
}

// Build filters out voices that are not locally usable and derives display
// names for the rest. The result is sorted by language label; ties keep the
// filtered input order.
func Build(raw []Descriptor) []Entry {
	entries := make([]Entry, 0, len(raw))

	for _, d := range raw {
		if d.NetworkRequired || !d.Installed {
			continue
		}
		entries = append(entries, Entry{
			ID:            d.ID,
			DisplayName:   displayName(d),
			LanguageLabel: languageLabel(d.Locale),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LanguageLabel < entries[j].LanguageLabel
	})

	return entries
}

// displayName derives a human-readable name from an opaque identifier.
// Precedence: gender token, quality keyword, first usable identifier
// token, locale display language.
func displayName(d Descriptor) string {
	if m := genderToken.FindStringSubmatch(d.ID); m != nil {
		name := capitalize(m[1]) + " Voice"
		if m[2] != "" {
			name += " " + m[2]
		}
		return name
	}

	lowerID := strings.ToLower(d.ID)
	for _, q := range qualityKeywords {
		if strings.Contains(lowerID, q.token) {
			return q.label + " Voice"
		}
	}

	if token := usableToken(d); token != "" {
		return capitalize(token) + " Voice"
	}

	return languageName(d.Locale) + " Voice"
}

// usableToken splits the identifier on '-', '#' and '_' and returns the
// first token that could plausibly be a name: 2-10 characters, not purely
// numeric, and not a filler token or the voice's own language/country code.
func usableToken(d Descriptor) string {
	lang, country := localeParts(d.Locale)

	tokens := strings.FieldsFunc(d.ID, func(r rune) bool {
		return r == '-' || r == '#' || r == '_'
	})

	for _, token := range tokens {
		if len(token) < 2 || len(token) > 10 {
			continue
		}
		if _, err := strconv.Atoi(token); err == nil {
			continue
		}
		switch strings.ToLower(token) {
		case "local", "x", lang, country:
			continue
		}
		return token
	}
	return ""
}

// languageLabel returns the display label used for catalog ordering,
// e.g. "American English" for "en-US". Unparseable locales fall back to
// the raw string so they still sort deterministically.
func languageLabel(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	if label := display.English.Tags().Name(tag); label != "" {
		return label
	}
	return locale
}

// languageName returns the bare display language, e.g. "English".
func languageName(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	base, _ := tag.Base()
	if label := display.English.Languages().Name(base); label != "" {
		return label
	}
	return locale
}

// localeParts extracts the lowercase language and country codes from a
// BCP 47 tag.
func localeParts(locale string) (lang, country string) {
	tag, err := language.Parse(locale)
	if err != nil {
		parts := strings.Split(strings.ToLower(locale), "-")
		lang = parts[0]
		if len(parts) > 1 {
			country = parts[1]
		}
		return lang, country
	}

	base, _ := tag.Base()
	region, _ := tag.Region()
	return strings.ToLower(base.String()), strings.ToLower(region.String())
}

// capitalize uppercases the first letter and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
