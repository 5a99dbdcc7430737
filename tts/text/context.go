package text

import "strings"

// Context classifies a document for abbreviation expansion. Ambiguous
// abbreviations such as "ML" resolve differently per context.
type Context int

const (
	// ContextGeneral is the default context and the fallback for every
	// contextual abbreviation.
	ContextGeneral Context = iota
	// ContextTechnical applies to software and engineering documents.
	ContextTechnical
	// ContextMedical applies to clinical and healthcare documents.
	ContextMedical
)

// String returns the string representation of the context.
func (c Context) String() string {
	switch c {
	case ContextGeneral:
		return "general"
	case ContextTechnical:
		return "technical"
	case ContextMedical:
		return "medical"
	default:
		return "unknown"
	}
}

// ParseContext converts a context name to a Context. Unknown names map to
// ContextGeneral.
func ParseContext(name string) Context {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "technical", "tech":
		return ContextTechnical
	case "medical", "med":
		return ContextMedical
	default:
		return ContextGeneral
	}
}

// Keyword sets for document classification. Scoring counts distinct
// keywords present in the text, not occurrences.
var (
	technicalKeywords = []string{
		"algorithm",
		"api",
		"backend",
		"compiler",
		"database",
		"debug",
		"deploy",
		"framework",
		"frontend",
		"function",
		"kernel",
		"latency",
		"repository",
		"runtime",
		"server",
		"software",
		"thread",
	}

	medicalKeywords = []string{
		"clinical",
		"diagnosis",
		"disease",
		"dose",
		"infection",
		"patient",
		"prescription",
		"surgery",
		"symptom",
		"syndrome",
		"therapy",
		"treatment",
		"vaccine",
	}
)

// DetectContext scores the full document text against the technical and
// medical keyword sets and returns the winning context. A context wins only
// when its score strictly exceeds the other's and is at least 2; ties and
// low scores resolve to ContextGeneral.
func DetectContext(full string) Context {
	lower := strings.ToLower(full)

	score := func(keywords []string) int {
		n := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		return n
	}

	technical := score(technicalKeywords)
	medical := score(medicalKeywords)

	switch {
	case technical > medical && technical >= 2:
		return ContextTechnical
	case medical > technical && medical >= 2:
		return ContextMedical
	default:
		return ContextGeneral
	}
}
