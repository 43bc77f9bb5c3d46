package match

import (
	"regexp"
	"sort"
	"strings"
)

// variantDef defines a recognizable release-variant marker: region tags and
// edition suffixes that distinguish copies of the same title.
type variantDef struct {
	label   string
	pattern string
}

// variantDefs is the single source of truth for variant markers. Detection
// uses word boundaries over the uppercased title.
// Patterns run against the space-folded output of normalizeBase, so they
// must not contain punctuation.
var variantDefs = []variantDef{
	{"Japan", `JP|JPN|JAP|JAPAN|JAPANESE`},
	{"English", `EN|ENG|ENGLISH`},
	{"USA", `US|USA|NTSC`},
	{"Europe", `EU|EUR|EUROPE|PAL`},
	{"GOTY", `GOTY|GAME\s*OF\s*THE\s*YEAR(\s*EDITION)?`},
	{"Definitive Edition", `DEFINITIVE\s*(EDITION)?`},
	{"Deluxe Edition", `DELUXE\s*(EDITION)?`},
	{"Special Edition", `SPECIAL\s*EDITION`},
	{"Complete Edition", `COMPLETE\s*(EDITION|COLLECTION)`},
	{"Enhanced Edition", `ENHANCED\s*(EDITION)?`},
	{"Anniversary Edition", `\d+\s*(TH|ST|ND|RD)?\s*ANNIVERSARY(\s*EDITION)?`},
	{"Remastered", `REMASTERED|REMASTER|HD\s*REMASTER(ED)?`},
	{"Directors Cut", `DIRECTOR\s?S?\s*CUT`},
}

var (
	variantPatterns []*regexp.Regexp
	variantLabels   []string
	yearParenSplit  = regexp.MustCompile(`\(\s*(19|20)\d{2}\s*\)`)
)

func init() {
	for _, def := range variantDefs {
		variantPatterns = append(variantPatterns, regexp.MustCompile(`(?i)\b(`+def.pattern+`)\b`))
		variantLabels = append(variantLabels, def.label)
	}
}

// Normalize reduces a title to its comparison core: lowercase alphanumeric
// words with variant markers, bracketed years, punctuation, and a leading
// article removed. If stripping variants would leave nothing, the unstripped
// form is kept so short titles stay comparable.
func Normalize(title string) string {
	base := normalizeBase(title)
	if base == "" {
		return ""
	}
	stripped := base
	for _, pattern := range variantPatterns {
		stripped = pattern.ReplaceAllString(stripped, " ")
	}
	stripped = dropLeadingArticle(collapseSpaces(stripped))
	if stripped == "" {
		return dropLeadingArticle(base)
	}
	return stripped
}

// Variants reports the variant marker labels present in a title, sorted and
// deduplicated.
func Variants(title string) []string {
	base := normalizeBase(title)
	if base == "" {
		return nil
	}
	seen := make(map[string]bool)
	var labels []string
	for i, pattern := range variantPatterns {
		if pattern.MatchString(base) && !seen[variantLabels[i]] {
			seen[variantLabels[i]] = true
			labels = append(labels, variantLabels[i])
		}
	}
	sort.Strings(labels)
	return labels
}

// normalizeBase lowercases, folds symbols to words, removes bracketed years,
// and reduces everything else to space-separated alphanumeric runs.
func normalizeBase(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" {
		return ""
	}
	lowered = yearParenSplit.ReplaceAllString(lowered, " ")
	lowered = strings.ReplaceAll(lowered, "&", " and ")
	lowered = strings.ReplaceAll(lowered, "+", " and ")

	var builder strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		default:
			builder.WriteByte(' ')
		}
	}
	return collapseSpaces(builder.String())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dropLeadingArticle(s string) string {
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, article) && len(s) > len(article) {
			return s[len(article):]
		}
	}
	return s
}
