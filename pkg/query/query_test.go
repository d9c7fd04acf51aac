package query

import (
	"reflect"
	"testing"
	"time"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/settings"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func labels(vs []Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Label
	}
	return out
}

func TestBuildLadderShape(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *settings.Preferences)
		want   []string
	}{
		{
			name:   "defaults",
			mutate: func(p *settings.Preferences) {},
			want:   []string{LabelStrictRecent, LabelStrict, LabelStrictAnyLength, LabelModerate, LabelModerateAnyLength, LabelBroad},
		},
		{
			name:   "no recency bound",
			mutate: func(p *settings.Preferences) { p.Recency = settings.RecencyAll },
			want:   []string{LabelStrict, LabelStrictAnyLength, LabelModerate, LabelModerateAnyLength, LabelBroad},
		},
		{
			name: "no nuance",
			mutate: func(p *settings.Preferences) {
				p.Tools = nil
				p.Styles = nil
			},
			want: []string{LabelStrictRecent, LabelStrict, LabelStrictAnyLength, LabelModerate, LabelModerateAnyLength},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := settings.Defaults()
			tt.mutate(&p)
			got := labels(Build(p, now))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("labels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildFirstRung(t *testing.T) {
	p := settings.Defaults()
	ladder := Build(p, now)
	first := ladder[0]

	wantTerms := []string{"Motion Graphics", "Motion Rhythm Analysis", "After Effects", "Minimal"}
	if !reflect.DeepEqual(first.Terms, wantTerms) {
		t.Errorf("terms = %v, want %v", first.Terms, wantTerms)
	}
	if !first.PublishedAfter.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAfter = %v", first.PublishedAfter)
	}
	if first.Duration != platforms.DurationShort || first.Sort != platforms.SortRelevance {
		t.Errorf("duration/sort = %q/%q", first.Duration, first.Sort)
	}

	p.Ranking = settings.RankEditorsPick
	if got := Build(p, now)[0].Sort; got != platforms.SortPopular {
		t.Errorf("editors_pick sort = %q, want popular", got)
	}
}

func TestBuildBroadDropsNuance(t *testing.T) {
	ladder := Build(settings.Defaults(), now)
	broad := ladder[len(ladder)-1]
	if want := []string{"Motion Graphics", "Motion Rhythm Analysis"}; !reflect.DeepEqual(broad.Terms, want) {
		t.Errorf("broad terms = %v, want %v", broad.Terms, want)
	}
	if broad.Sort != platforms.SortPopular || broad.Duration != platforms.DurationShort {
		t.Errorf("broad sort/duration = %q/%q", broad.Sort, broad.Duration)
	}
	if !broad.PublishedAfter.IsZero() {
		t.Errorf("broad has a recency bound")
	}
}

func TestNegativesRelaxMonotonically(t *testing.T) {
	ladder := Build(settings.Defaults(), now)
	for i := range ladder {
		for j := i + 1; j < len(ladder); j++ {
			earlier := make(map[string]bool)
			for _, n := range ladder[i].Negatives {
				earlier[n] = true
			}
			for _, n := range ladder[j].Negatives {
				if !earlier[n] {
					t.Errorf("rung %s adds negative %q missing from %s", ladder[j].Label, n, ladder[i].Label)
				}
			}
		}
	}
}

func TestBaseTermsNeverDropped(t *testing.T) {
	p := settings.Defaults()
	for _, v := range Build(p, now) {
		if len(v.Terms) < 2 || v.Terms[0] != p.PrimaryTopic || v.Terms[1] != p.SecondaryFocus {
			t.Errorf("rung %s lost base terms: %v", v.Label, v.Terms)
		}
	}
}

func TestRender(t *testing.T) {
	got := Render([]string{"Motion Graphics", "Minimal"}, []string{"tutorial", "how to"})
	want := `Motion Graphics Minimal -tutorial -"how to"`
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestBuildEmptySecondaryFocus(t *testing.T) {
	p := settings.Defaults()
	p.SecondaryFocus = ""
	p.Tools = []string{"Minimal"}
	p.Styles = []string{"Minimal"}
	ladder := Build(p, now)
	if want := []string{"Motion Graphics", "Minimal"}; !reflect.DeepEqual(ladder[0].Terms, want) {
		t.Errorf("terms = %v, want %v", ladder[0].Terms, want)
	}
}
