package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/refscout/refscout/pkg/video"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid collection preferences")

// RecencyWindow bounds how old a collected video may be.
type RecencyWindow string

const (
	Recency3Months RecencyWindow = "3_months"
	Recency6Months RecencyWindow = "6_months"
	Recency1Year   RecencyWindow = "1_year"
	RecencyAll     RecencyWindow = "all"
)

// LowerBound returns the earliest acceptable publish time, or false when unbounded.
func (r RecencyWindow) LowerBound(now time.Time) (time.Time, bool) {
	switch r {
	case Recency3Months:
		return now.AddDate(0, -3, 0), true
	case Recency6Months:
		return now.AddDate(0, -6, 0), true
	case Recency1Year:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

func (r RecencyWindow) valid() bool {
	switch r {
	case Recency3Months, Recency6Months, Recency1Year, RecencyAll:
		return true
	}
	return false
}

// RankingMode picks how the first rung of the ladder sorts results.
type RankingMode string

const (
	RankCreativeQuality RankingMode = "creative_quality"
	RankEditorsPick     RankingMode = "editors_pick"
)

const (
	MaxTargetCount = 5
	MaxTags        = 2
)

// Preferences drives a collection run.
type Preferences struct {
	PrimaryTopic   string           `json:"genre"`
	SecondaryFocus string           `json:"focus"`
	Tools          []string         `json:"tools"`
	Styles         []string         `json:"styles"`
	Recency        RecencyWindow    `json:"recency"`
	Platforms      []video.Platform `json:"platforms"`
	TargetCount    int              `json:"dailyLimit"`
	Ranking        RankingMode      `json:"ranking"`
	AutoAnalyze    bool             `json:"autoAnalyze"`
	UpdatedAt      time.Time        `json:"updatedAt,omitempty"`
}

func Defaults() Preferences {
	return Preferences{
		PrimaryTopic:   "Motion Graphics",
		SecondaryFocus: "Motion Rhythm Analysis",
		Tools:          []string{"After Effects"},
		Styles:         []string{"Minimal"},
		Recency:        Recency1Year,
		Platforms:      []video.Platform{video.YouTube, video.Vimeo, video.Behance},
		TargetCount:    3,
		Ranking:        RankCreativeQuality,
		AutoAnalyze:    true,
	}
}

// Normalize trims strings and drops repeated tags and platforms, keeping the first occurrence.
func (p Preferences) Normalize() Preferences {
	p.PrimaryTopic = strings.TrimSpace(p.PrimaryTopic)
	p.SecondaryFocus = strings.TrimSpace(p.SecondaryFocus)
	p.Tools = uniqueStrings(p.Tools)
	p.Styles = uniqueStrings(p.Styles)
	p.Recency = RecencyWindow(strings.TrimSpace(string(p.Recency)))
	p.Ranking = RankingMode(strings.TrimSpace(string(p.Ranking)))

	seen := make(map[video.Platform]bool, len(p.Platforms))
	platforms := make([]video.Platform, 0, len(p.Platforms))
	for _, pl := range p.Platforms {
		pl = video.Platform(strings.ToLower(strings.TrimSpace(string(pl))))
		if pl == "" || seen[pl] {
			continue
		}
		seen[pl] = true
		platforms = append(platforms, pl)
	}
	p.Platforms = platforms
	return p
}

func (p Preferences) Validate() error {
	if p.TargetCount < 1 || p.TargetCount > MaxTargetCount {
		return fmt.Errorf("%w: target count %d out of range 1..%d", ErrInvalid, p.TargetCount, MaxTargetCount)
	}
	if len(p.Platforms) == 0 {
		return fmt.Errorf("%w: no platforms selected", ErrInvalid)
	}
	for _, pl := range p.Platforms {
		parsed, err := video.ParsePlatform(string(pl))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if !parsed.Searchable() {
			return fmt.Errorf("%w: platform %q cannot be searched", ErrInvalid, pl)
		}
	}
	if len(p.Tools) > MaxTags {
		return fmt.Errorf("%w: at most %d tools allowed, got %d", ErrInvalid, MaxTags, len(p.Tools))
	}
	if len(p.Styles) > MaxTags {
		return fmt.Errorf("%w: at most %d styles allowed, got %d", ErrInvalid, MaxTags, len(p.Styles))
	}
	if p.Recency != "" && !p.Recency.valid() {
		return fmt.Errorf("%w: unknown recency window %q", ErrInvalid, p.Recency)
	}
	switch p.Ranking {
	case "", RankCreativeQuality, RankEditorsPick:
	default:
		return fmt.Errorf("%w: unknown ranking mode %q", ErrInvalid, p.Ranking)
	}
	return nil
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
