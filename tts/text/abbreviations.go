package text

// Abbreviation tables. Both tables are static and matched case-insensitively
// on whole words only; the matching regexps are compiled once in NewPreprocessor.

// contextualAbbreviations maps an abbreviation to its per-context expansion.
// Every entry carries a ContextGeneral fallback, used when no expansion is
// registered for the current context.
var contextualAbbreviations = map[string]map[Context]string{
	"ml": {
		ContextTechnical: "machine learning",
		ContextMedical:   "milliliter",
		ContextGeneral:   "M L",
	},
	"ai": {
		ContextTechnical: "artificial intelligence",
		ContextGeneral:   "A I",
	},
	"iv": {
		ContextMedical: "intravenous",
		ContextGeneral: "I V",
	},
	"bp": {
		ContextMedical: "blood pressure",
		ContextGeneral: "B P",
	},
	"ct": {
		ContextTechnical: "count",
		ContextMedical:   "CAT scan",
		ContextGeneral:   "C T",
	},
	"rx": {
		ContextMedical: "prescription",
		ContextGeneral: "R X",
	},
	"db": {
		ContextTechnical: "database",
		ContextMedical:   "decibels",
		ContextGeneral:   "D B",
	},
	"lb": {
		ContextMedical: "pounds",
		ContextGeneral: "pounds",
	},
}

// universalAbbreviations expand the same way in every context.
var universalAbbreviations = map[string]string{
	"api":  "A P I",
	"cpu":  "C P U",
	"gpu":  "G P U",
	"css":  "C S S",
	"html": "H T M L",
	"http": "H T T P",
	"json": "jason",
	"sql":  "sequel",
	"url":  "U R L",
	"ui":   "user interface",
	"os":   "operating system",
	"etc":  "et cetera",
	"vs":   "versus",
	"gb":   "gigabytes",
	"mb":   "megabytes",
	"kb":   "kilobytes",
	"tb":   "terabytes",
}

// storageUnits are the unit suffixes recognized by the digit+unit stage.
// Expansions come from universalAbbreviations so both stages speak the
// same words.
var storageUnits = []string{"gb", "mb", "kb", "tb"}
