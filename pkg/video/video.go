package video

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Platform identifies where a video reference comes from.
type Platform string

const (
	YouTube Platform = "youtube"
	Vimeo   Platform = "vimeo"
	Behance Platform = "behance"
	Meta    Platform = "meta"
	TikTok  Platform = "tiktok"
	Other   Platform = "other"
)

var allPlatforms = []Platform{YouTube, Vimeo, Behance, Meta, TikTok, Other}

// SearchablePlatforms lists the platforms a search adapter exists for.
func SearchablePlatforms() []Platform {
	return []Platform{YouTube, Vimeo, Behance}
}

// Searchable reports whether automatic collection can target p.
func (p Platform) Searchable() bool {
	switch p {
	case YouTube, Vimeo, Behance:
		return true
	}
	return false
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

const (
	CollectedAuto   = "auto"
	CollectedManual = "manual"
)

// Metrics holds raw engagement counters and the derived popularity score.
type Metrics struct {
	Views    int64   `json:"views"`
	Likes    int64   `json:"likes"`
	Comments int64   `json:"comments,omitempty"`
	Score    float64 `json:"score"`
}

// Item is a single video reference. URL is its identity.
type Item struct {
	ID              string    `json:"id,omitempty"`
	URL             string    `json:"videoUrl"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	Author          string    `json:"brand"`
	Platform        Platform  `json:"platform"`
	DurationSeconds int       `json:"duration"`
	PublishedAt     time.Time `json:"publishedAt,omitempty"`
	Metrics         Metrics   `json:"metrics"`
	Tags            []string  `json:"tags,omitempty"`
	CollectedBy     string    `json:"collectedBy,omitempty"`
	CollectedAt     time.Time `json:"collectedAt,omitempty"`
	Analysis        *Analysis `json:"analysis,omitempty"`
}

// Analysis is the stored result of an AI breakdown of a video.
type Analysis struct {
	OneLineSummary string         `json:"oneLineSummary"`
	OverallScore   float64        `json:"overallScore"`
	KeyTakeaways   []string       `json:"keyTakeaways"`
	Timecodes      []Timecode     `json:"timecodeAnalysis,omitempty"`
	Recipe         Recipe         `json:"replicationRecipe"`
	Learning       LearningPoints `json:"learningPoints"`
	Model          string         `json:"model,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type Timecode struct {
	Timestamp       string `json:"timestamp"`
	Content         string `json:"content"`
	ProductionPoint string `json:"productionPoint"`
}

type Recipe struct {
	RecommendedTools []string `json:"recommendedTools"`
	KeyFunctions     []string `json:"keyFunctions"`
	DifficultyPoint  string   `json:"difficultyPoint"`
}

type LearningPoints struct {
	Experiments     []string `json:"experiments"`
	DifficultyLevel string   `json:"difficultyLevel"`
	MustWatchPoint  string   `json:"mustWatchPoint"`
}

// PopularityScore weighs log-scaled views and likes and rounds to two decimals.
func PopularityScore(views, likes int64, viewWeight, likeWeight float64) float64 {
	if views < 0 {
		views = 0
	}
	if likes < 0 {
		likes = 0
	}
	s := math.Log10(float64(views)+1)*viewWeight + math.Log10(float64(likes)+1)*likeWeight
	return math.Round(s*100) / 100
}
