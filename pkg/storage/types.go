package storage

import (
	"errors"
	"time"

	"github.com/refscout/refscout/pkg/video"
)

var (
	// ErrDuplicateVideo is returned when a video with the same URL is already stored.
	ErrDuplicateVideo = errors.New("video already stored")
	ErrNotFound       = errors.New("not found")
)

// ListOptions controls selection when listing videos.
type ListOptions struct {
	Platform    video.Platform
	CollectedBy string
	Since       time.Time
	Until       time.Time
	Limit       int
}

// PlatformCount is the number of videos attributed to one platform.
type PlatformCount struct {
	Platform video.Platform `json:"platform"`
	Count    int            `json:"count"`
}

// Stats summarizes the library.
type Stats struct {
	Total          int             `json:"total"`
	Auto           int             `json:"autoCollected"`
	Manual         int             `json:"manualAdded"`
	LastCollection time.Time       `json:"lastCollection,omitempty"`
	PerPlatform    []PlatformCount `json:"platforms"`
}

// RunRecord is the logged summary of one collection run.
type RunRecord struct {
	ID             int64           `json:"id"`
	CollectedAt    time.Time       `json:"collectionDate"`
	TotalCollected int             `json:"totalCollected"`
	NewlySaved     int             `json:"newlySaved"`
	Breakdown      []PlatformCount `json:"platformBreakdown"`
	Trigger        string          `json:"trigger"`
}
