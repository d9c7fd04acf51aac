// Package query builds the ordered ladder of search variants used for one
// collection run, from the most restrictive to the most relaxed.
package query

import (
	"strings"
	"time"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/settings"
)

// StrictNegatives filters out instructional and template content.
var StrictNegatives = []string{
	"tutorial", "how to", "course", "class",
	"making of", "behind the scenes", "breakdown", "process",
	"template", "free download", "intro", "opener", "review",
}

// EssentialNegatives is the subset kept once the ladder relaxes.
var EssentialNegatives = []string{"tutorial", "how to", "course", "template"}

const (
	LabelStrictRecent      = "strict-recent"
	LabelStrict            = "strict"
	LabelStrictAnyLength   = "strict-any-length"
	LabelModerate          = "moderate"
	LabelModerateAnyLength = "moderate-any-length"
	LabelBroad             = "broad"
)

// Variant is one rung of the relaxation ladder.
type Variant struct {
	Label          string
	Terms          []string
	Negatives      []string
	Query          string
	PublishedAfter time.Time
	Duration       platforms.Duration
	Sort           platforms.Sort
}

// Build returns the ladder for prefs. Rungs whose precondition does not hold
// are left out entirely.
func Build(prefs settings.Preferences, now time.Time) []Variant {
	base := nonEmpty(prefs.PrimaryTopic, prefs.SecondaryFocus)
	nuance := mergeTags(prefs.Tools, prefs.Styles)
	full := append(append([]string{}, base...), nuance...)

	var ladder []Variant

	if bound, ok := prefs.Recency.LowerBound(now); ok {
		sort := platforms.SortRelevance
		if prefs.Ranking == settings.RankEditorsPick {
			sort = platforms.SortPopular
		}
		ladder = append(ladder, newVariant(LabelStrictRecent, full, StrictNegatives, bound, platforms.DurationShort, sort))
	}

	ladder = append(ladder,
		newVariant(LabelStrict, full, StrictNegatives, time.Time{}, platforms.DurationShort, platforms.SortRelevance),
		newVariant(LabelStrictAnyLength, full, StrictNegatives, time.Time{}, platforms.DurationAny, platforms.SortRelevance),
		newVariant(LabelModerate, full, EssentialNegatives, time.Time{}, platforms.DurationShort, platforms.SortRelevance),
		newVariant(LabelModerateAnyLength, full, EssentialNegatives, time.Time{}, platforms.DurationAny, platforms.SortRelevance),
	)

	if len(nuance) > 0 {
		ladder = append(ladder, newVariant(LabelBroad, base, EssentialNegatives, time.Time{}, platforms.DurationShort, platforms.SortPopular))
	}
	return ladder
}

func newVariant(label string, terms, negatives []string, after time.Time, d platforms.Duration, s platforms.Sort) Variant {
	return Variant{
		Label:          label,
		Terms:          append([]string(nil), terms...),
		Negatives:      append([]string(nil), negatives...),
		Query:          Render(terms, negatives),
		PublishedAfter: after,
		Duration:       d,
		Sort:           s,
	}
}

// Render joins the positive terms and the excluded phrases into a search string.
func Render(terms, negatives []string) string {
	parts := make([]string, 0, len(terms)+len(negatives))
	parts = append(parts, terms...)
	for _, n := range negatives {
		if strings.ContainsRune(n, ' ') {
			parts = append(parts, `-"`+n+`"`)
		} else {
			parts = append(parts, "-"+n)
		}
	}
	return strings.Join(parts, " ")
}

func nonEmpty(ss ...string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, s := range l {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
