package cmd

import (
	"errors"
	"testing"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
)

func TestRequireSearchers(t *testing.T) {
	if err := requireSearchers(nil); !errors.Is(err, platforms.ErrNotConfigured) {
		t.Errorf("no searchers: err = %v, want ErrNotConfigured", err)
	}
	if err := requireSearchers(buildSearchers(nil, true)); err != nil {
		t.Errorf("dev searchers: %v", err)
	}
}

func TestBuildSearchersDev(t *testing.T) {
	got := buildSearchers(nil, true)
	if len(got) != len(video.SearchablePlatforms()) {
		t.Fatalf("dev searchers = %d, want %d", len(got), len(video.SearchablePlatforms()))
	}
	for i, p := range video.SearchablePlatforms() {
		if got[i].Name() != p {
			t.Errorf("searcher %d = %s, want %s", i, got[i].Name(), p)
		}
	}
}
