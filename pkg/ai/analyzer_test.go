package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/refscout/refscout/pkg/video"
	"github.com/tidwall/gjson"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if gjson.GetBytes(body, "model").Str != "m1" || gjson.GetBytes(body, "response_format.type").Str != "json_object" {
			t.Errorf("request body = %s", body)
		}
		if !strings.Contains(gjson.GetBytes(body, "messages.1.content").Str, "Title: Loop Study") {
			t.Errorf("user prompt missing title: %s", body)
		}
		content := "```json\n" + `{"oneLineSummary": "Elastic loops", "overallScore": 8,
		  "timecodeAnalysis": [{"timestamp": "0:00-0:03", "content": "Hook", "productionPoint": "snap"}],
		  "replicationRecipe": {"recommendedTools": ["After Effects", " after effects ", ""], "keyFunctions": ["Graph editor"]},
		  "learningPoints": {"difficultyLevel": "high"}, "keyTakeaways": ["ease"]}` + "\n```"
		resp, _ := json.Marshal(map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"message": map[string]string{"content": content}}},
		})
		w.Write(resp)
	}))
	defer srv.Close()

	a, err := NewAnalyzer(Config{APIKey: "k", Model: "m1", Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Analyze(context.Background(), video.Item{Title: "Loop Study", URL: "https://vimeo.com/1", Platform: video.Vimeo})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.OneLineSummary != "Elastic loops" || got.OverallScore != 8 || got.Model != "m1" || got.CreatedAt.IsZero() {
		t.Errorf("analysis = %+v", got)
	}
	if !reflect.DeepEqual(got.Recipe.RecommendedTools, []string{"After Effects"}) {
		t.Errorf("tools = %v", got.Recipe.RecommendedTools)
	}
	if got.Learning.DifficultyLevel != "High" || len(got.Timecodes) != 1 {
		t.Errorf("learning = %+v timecodes = %v", got.Learning, got.Timecodes)
	}
}

func TestAnalyzeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited"}}`)
	}))
	defer srv.Close()

	a, _ := NewAnalyzer(Config{APIKey: "k", Endpoint: srv.URL})
	_, err := a.Analyze(context.Background(), video.Item{})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v", err)
	}
}

func TestNewAnalyzer(t *testing.T) {
	if _, err := NewAnalyzer(Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("missing key: err = %v", err)
	}
	if _, err := NewAnalyzer(Config{APIKey: "k", Provider: "nope"}); err == nil {
		t.Error("unknown provider accepted")
	}
	a, err := NewAnalyzer(Config{APIKey: "k", Provider: "Groq"})
	if err != nil {
		t.Fatal(err)
	}
	if a.model != "llama-3.3-70b-versatile" || !strings.Contains(a.endpoint, "groq.com") {
		t.Errorf("groq defaults not applied: %s %s", a.model, a.endpoint)
	}
}

func TestParseAnalysisDefaults(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantScore float64
		wantLevel string
		wantErr   bool
	}{
		{name: "empty object", in: `{}`, wantScore: 5, wantLevel: "Medium"},
		{name: "score clamped", in: `{"overallScore": 42, "learningPoints": {"difficultyLevel": "Low"}}`, wantScore: 10, wantLevel: "Low"},
		{name: "string score", in: `{"overallScore": "7"}`, wantScore: 7, wantLevel: "Medium"},
		{name: "not json", in: `sorry, I cannot`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAnalysis(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.OverallScore != tc.wantScore || got.Learning.DifficultyLevel != tc.wantLevel || got.OneLineSummary == "" {
				t.Errorf("got %+v", got)
			}
		})
	}
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, it video.Item) (*video.Analysis, error) {
	if it.Title == "bad" {
		return nil, errors.New("boom")
	}
	return &video.Analysis{OneLineSummary: it.Title}, nil
}

func TestAnalyzeManyKeepsOrder(t *testing.T) {
	items := []video.Item{{Title: "a"}, {Title: "bad"}, {Title: "c"}, {Title: "d"}}
	out := AnalyzeMany(context.Background(), fakeAnalyzer{}, items, 2)
	if len(out) != len(items) {
		t.Fatalf("outcomes = %d", len(out))
	}
	for i, o := range out {
		if o.Item.Title != items[i].Title {
			t.Errorf("outcome %d is for %q", i, o.Item.Title)
		}
		if (o.Err != nil) != (items[i].Title == "bad") {
			t.Errorf("outcome %d err = %v", i, o.Err)
		}
		if o.Err == nil && o.Analysis.OneLineSummary != items[i].Title {
			t.Errorf("outcome %d analysis = %+v", i, o.Analysis)
		}
	}
}
