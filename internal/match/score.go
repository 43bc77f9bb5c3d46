package match

import (
	"strconv"
	"strings"

	"ludex/internal/library"
)

// Scoring adjustments. The variant discounts keep copies of one title in
// differing regions or editions below the auto-accept line so a human
// confirms the grouping.
const (
	crossVariantDiscount    = 0.92
	oneSidedVariantDiscount = 0.96
	yearBonus               = 0.04
	yearPenalty             = 0.08
	developerBonus          = 0.05
	identityFloor           = 0.99
	identityPenalty         = 0.20
)

// Signals is the comparable shape of one match candidate, extracted from
// either a local instance or a canonical game.
type Signals struct {
	Core      string
	Variants  []string
	Year      int
	Developer string
	Links     map[library.SourceType]string
}

type identityOverlap int

const (
	overlapNone identityOverlap = iota
	overlapSame
	overlapConflict
)

// instanceSignals derives match signals from a scanned instance. Year and
// catalog identity come from scanner tags.
func instanceSignals(instance *library.Instance) Signals {
	title := strings.TrimSpace(instance.Title)
	if title == "" {
		title = folderName(instance.FolderPath)
	}
	signals := Signals{
		Core:     Normalize(title),
		Variants: Variants(title),
		Links:    make(map[library.SourceType]string),
	}
	for _, tag := range instance.Tags {
		if year, ok := strings.CutPrefix(tag, "year:"); ok {
			if parsed, err := strconv.Atoi(year); err == nil {
				signals.Year = parsed
			}
			continue
		}
		if id, ok := strings.CutPrefix(tag, "steam:"); ok {
			signals.Links[library.SourceSteam] = id
		}
	}
	return signals
}

// canonicalSignals derives match signals from a canonical game and its
// identity links.
func canonicalSignals(game *library.CanonicalGame, links []*library.IdentityLink) Signals {
	signals := Signals{
		Core:      Normalize(game.DisplayTitle),
		Variants:  Variants(game.DisplayTitle),
		Developer: strings.TrimSpace(game.Developer),
		Links:     make(map[library.SourceType]string),
	}
	if len(game.ReleaseDate) >= 4 {
		if year, err := strconv.Atoi(game.ReleaseDate[:4]); err == nil {
			signals.Year = year
		}
	}
	for _, link := range links {
		signals.Links[link.SourceType] = link.ExternalID
	}
	return signals
}

// scorePair computes the similarity score for two candidates in [0,1].
func scorePair(a, b Signals) float64 {
	var score float64
	if a.Core != "" && a.Core == b.Core {
		score = 1.0
		switch {
		case equalVariants(a.Variants, b.Variants):
			// Same release variant, full confidence from the title alone.
		case len(a.Variants) > 0 && len(b.Variants) > 0:
			score *= crossVariantDiscount
		default:
			score *= oneSidedVariantDiscount
		}
	} else {
		score = TitleSimilarity(a.Core, b.Core)
	}

	if a.Year != 0 && b.Year != 0 {
		if a.Year == b.Year {
			score += yearBonus
		} else {
			score -= yearPenalty
		}
	}
	if a.Developer != "" && b.Developer != "" && strings.EqualFold(a.Developer, b.Developer) {
		score += developerBonus
	}

	switch compareIdentity(a, b) {
	case overlapSame:
		if score < identityFloor {
			score = identityFloor
		}
	case overlapConflict:
		score -= identityPenalty
	}

	return clamp01(score)
}

// compareIdentity checks shared catalog sources. A matching external id is
// decisive; ids that disagree on the same source count against the pair.
func compareIdentity(a, b Signals) identityOverlap {
	result := overlapNone
	for source, idA := range a.Links {
		idB, ok := b.Links[source]
		if !ok {
			continue
		}
		if idA == idB && idA != "" {
			return overlapSame
		}
		result = overlapConflict
	}
	return result
}

func equalVariants(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func folderName(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
