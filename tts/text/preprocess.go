// Package text rewrites raw document text into a form a speech synthesizer
// can pronounce. It expands abbreviations by document context, rewrites code
// tokens and punctuation into spoken English, and normalizes whitespace.
package text

import (
	"regexp"
	"sort"
	"strings"
)

// patternRule is a single regexp substitution. Rules run in table order and
// each rule's output feeds the next, so ordering is part of the contract:
// the three-component version rule must run before the two-component one,
// and comparison operators are listed longest first.
type patternRule struct {
	matcher     *regexp.Regexp
	replacement string
}

// abbrevRule is a compiled whole-word abbreviation matcher.
type abbrevRule struct {
	matcher    *regexp.Regexp
	expansions map[Context]string // nil context map means universal
	universal  string
}

// Preprocessor converts raw block text into speakable text. It is pure and
// safe for concurrent use; all tables are compiled once in NewPreprocessor.
type Preprocessor struct {
	rules      []patternRule
	contextual []abbrevRule
	universal  []abbrevRule
	unitNumber *regexp.Regexp
}

// NewPreprocessor compiles the pattern rules and abbreviation tables.
func NewPreprocessor() *Preprocessor {
	p := &Preprocessor{
		rules: []patternRule{
			// Path separators become a spoken pause.
			{regexp.MustCompile(`[/\\]`), ", "},
			// Semantic versions, three components before two.
			{regexp.MustCompile(`\bv(\d+)\.(\d+)\.(\d+)`), "version $1 point $2 point $3"},
			{regexp.MustCompile(`\bv(\d+)\.(\d+)`), "version $1 point $2"},
			// Inline code spans lose their backticks.
			{regexp.MustCompile("`([^`]+)`"), "$1"},
			// camelCase boundaries become word breaks.
			{regexp.MustCompile(`([a-z])([A-Z])`), "$1 $2"},
			{regexp.MustCompile(`_`), " "},
			{regexp.MustCompile(`\.\.\.`), ", "},
			// Arrows.
			{regexp.MustCompile(`->`), " to "},
			{regexp.MustCompile(`=>`), " maps to "},
			// Comparison operators, longest first so `!==` is not split
			// by the `!=` rule.
			{regexp.MustCompile(`!==`), " is not identical to "},
			{regexp.MustCompile(`===`), " is identical to "},
			{regexp.MustCompile(`!=`), " is not equal to "},
			{regexp.MustCompile(`==`), " is equal to "},
			{regexp.MustCompile(`<=`), " is less than or equal to "},
			{regexp.MustCompile(`>=`), " is greater than or equal to "},
			// Social tokens.
			{regexp.MustCompile(`#(\w+)`), "hashtag $1"},
			{regexp.MustCompile(`@(\w+)`), "at $1"},
		},
		unitNumber: regexp.MustCompile(`(?i)\b(\d+)\s?(` + strings.Join(storageUnits, "|") + `)\b`),
	}

	p.contextual = compileContextual(contextualAbbreviations)
	p.universal = compileUniversal(universalAbbreviations)

	return p
}

// Process rewrites text for the given context. Stages run strictly in
// order: pattern rules, contextual abbreviations, universal abbreviations,
// unit-suffixed numbers, whitespace normalization.
func (p *Preprocessor) Process(input string, ctx Context) string {
	out := input

	for _, rule := range p.rules {
		out = rule.matcher.ReplaceAllString(out, rule.replacement)
	}

	for _, abbr := range p.contextual {
		expansion, ok := abbr.expansions[ctx]
		if !ok {
			expansion = abbr.expansions[ContextGeneral]
		}
		out = abbr.matcher.ReplaceAllString(out, expansion)
	}

	for _, abbr := range p.universal {
		out = abbr.matcher.ReplaceAllString(out, abbr.universal)
	}

	out = p.unitNumber.ReplaceAllStringFunc(out, func(match string) string {
		sub := p.unitNumber.FindStringSubmatch(match)
		return sub[1] + " " + universalAbbreviations[strings.ToLower(sub[2])]
	})

	return strings.Join(strings.Fields(out), " ")
}

// compileContextual builds whole-word matchers for the contextual table in
// deterministic (sorted) order.
func compileContextual(table map[string]map[Context]string) []abbrevRule {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rules := make([]abbrevRule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, abbrevRule{
			matcher:    wholeWord(k),
			expansions: table[k],
		})
	}
	return rules
}

// compileUniversal builds whole-word matchers for the universal table in
// deterministic (sorted) order.
func compileUniversal(table map[string]string) []abbrevRule {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rules := make([]abbrevRule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, abbrevRule{
			matcher:   wholeWord(k),
			universal: table[k],
		})
	}
	return rules
}

// wholeWord compiles a case-insensitive whole-word matcher for an
// abbreviation, so "html" never matches inside "html5".
func wholeWord(abbr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(abbr) + `\b`)
}
