package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/video"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Config controls which LLM backend analyses videos.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	Endpoint       string
	MaxConcurrency int
	HTTPClient     *http.Client
}

// Analyzer produces a production breakdown for one video.
type Analyzer interface {
	Analyze(ctx context.Context, item video.Item) (*video.Analysis, error)
}

var ErrNoAPIKey = errors.New("video analysis requires an API key (set ai.api_key in config or AI_API_KEY)")

const (
	defaultProvider       = "openai"
	defaultMaxConcurrency = 3
)

var providerDefaults = map[string]struct{ endpoint, model string }{
	"openai": {"https://api.openai.com/v1/chat/completions", "gpt-4.1-mini"},
	"groq":   {"https://api.groq.com/openai/v1/chat/completions", "llama-3.3-70b-versatile"},
}

// NewAnalyzer builds an Analyzer for cfg.Provider. Every supported provider speaks
// the OpenAI chat completions protocol.
func NewAnalyzer(cfg Config) (*OpenAIAnalyzer, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	defaults, ok := providerDefaults[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaults.model
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaults.endpoint
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}

	return &OpenAIAnalyzer{
		apiKey:         apiKey,
		model:          model,
		endpoint:       endpoint,
		maxConcurrency: maxConcurrency,
		client:         client,
	}, nil
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type OpenAIAnalyzer struct {
	apiKey         string
	model          string
	endpoint       string
	maxConcurrency int
	client         httpClient
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, item video.Item) (*video.Analysis, error) {
	utils.Log.Debugf("[ai] analyzing %s with %s", item.URL, a.model)

	body, err := a.requestBody(item)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		if msg := gjson.GetBytes(raw, "error.message").Str; msg != "" {
			return nil, fmt.Errorf("video analysis: %s", msg)
		}
		return nil, fmt.Errorf("video analysis failed with HTTP %d", resp.StatusCode)
	}

	content := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").Str)
	if content == "" {
		return nil, errors.New("video analysis returned an empty response")
	}

	analysis, err := parseAnalysis(content)
	if err != nil {
		return nil, err
	}
	analysis.Model = a.model
	analysis.CreatedAt = time.Now().UTC()
	return analysis, nil
}

func (a *OpenAIAnalyzer) requestBody(item video.Item) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, v interface{}) {
		if err == nil {
			body, err = sjson.SetBytes(body, path, v)
		}
	}
	set("model", a.model)
	set("temperature", 0.5)
	set("response_format.type", "json_object")
	set("messages.0.role", "system")
	set("messages.0.content", systemPrompt)
	set("messages.1.role", "user")
	set("messages.1.content", userPrompt(item))
	return body, err
}

// Outcome is one result of AnalyzeMany.
type Outcome struct {
	Item     video.Item
	Analysis *video.Analysis
	Err      error
}

// Concurrency is the number of parallel requests AnalyzeMany should use for a.
func (a *OpenAIAnalyzer) Concurrency() int { return a.maxConcurrency }

// AnalyzeMany runs Analyze over items with at most workers requests in flight.
// Outcomes keep input order.
func AnalyzeMany(ctx context.Context, an Analyzer, items []video.Item, workers int) []Outcome {
	out := make([]Outcome, len(items))
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		go func(i int, it video.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := an.Analyze(ctx, it)
			if err != nil {
				utils.Log.Debugf("[ai] %s failed: %v", it.URL, err)
			}
			out[i] = Outcome{Item: it, Analysis: res, Err: err}
		}(i, it)
	}
	wg.Wait()
	return out
}

func userPrompt(item video.Item) string {
	desc := item.Description
	if desc == "" {
		desc = "No description available."
	}
	var b strings.Builder
	b.WriteString("Analyze this video for a creator audience. Focus on production key points and how to replicate them.\n\n")
	b.WriteString("Title: " + item.Title + "\n")
	b.WriteString("Platform: " + string(item.Platform) + "\n")
	b.WriteString("Duration: " + strconv.Itoa(item.DurationSeconds) + "s\n")
	b.WriteString("URL: " + item.URL + "\n")
	b.WriteString("Description:\n" + desc + "\n")
	return b.String()
}

const systemPrompt = `You are an expert video production analyst. Respond with JSON only.

Return ONLY JSON following this schema:
{
  "oneLineSummary": "core concept in one line",
  "timecodeAnalysis": [
    {"timestamp": "0:00-0:03", "content": "Hook", "productionPoint": "what makes it work"}
  ],
  "replicationRecipe": {
    "recommendedTools": ["After Effects"],
    "keyFunctions": ["Graph editor"],
    "difficultyPoint": "hardest part to replicate"
  },
  "learningPoints": {
    "experiments": ["experiment to try"],
    "difficultyLevel": "Low" | "Medium" | "High",
    "mustWatchPoint": "one moment worth rewatching"
  },
  "overallScore": 1-10,
  "keyTakeaways": ["summary point"]
}

Provide at least five timecode segments. Be specific about software (AE, C4D, Premiere, Blender).`

type llmOutput struct {
	OneLineSummary   string           `json:"oneLineSummary"`
	TimecodeAnalysis []video.Timecode `json:"timecodeAnalysis"`
	Recipe           video.Recipe     `json:"replicationRecipe"`
	Learning         struct {
		Experiments     []string `json:"experiments"`
		DifficultyLevel string   `json:"difficultyLevel"`
		MustWatchPoint  string   `json:"mustWatchPoint"`
	} `json:"learningPoints"`
	OverallScore json.Number `json:"overallScore"`
	KeyTakeaways []string    `json:"keyTakeaways"`
}

func parseAnalysis(content string) (*video.Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed llmOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse AI response: %w", err)
	}

	a := &video.Analysis{
		OneLineSummary: strings.TrimSpace(parsed.OneLineSummary),
		KeyTakeaways:   sanitizeList(parsed.KeyTakeaways),
		Recipe: video.Recipe{
			RecommendedTools: sanitizeList(parsed.Recipe.RecommendedTools),
			KeyFunctions:     sanitizeList(parsed.Recipe.KeyFunctions),
			DifficultyPoint:  strings.TrimSpace(parsed.Recipe.DifficultyPoint),
		},
		Learning: video.LearningPoints{
			Experiments:     sanitizeList(parsed.Learning.Experiments),
			DifficultyLevel: difficulty(parsed.Learning.DifficultyLevel),
			MustWatchPoint:  strings.TrimSpace(parsed.Learning.MustWatchPoint),
		},
	}
	if a.OneLineSummary == "" {
		a.OneLineSummary = "No analysis result"
	}
	for _, tc := range parsed.TimecodeAnalysis {
		if strings.TrimSpace(tc.Timestamp) == "" && strings.TrimSpace(tc.Content) == "" {
			continue
		}
		a.Timecodes = append(a.Timecodes, tc)
	}

	score, err := parsed.OverallScore.Float64()
	if err != nil || score <= 0 {
		score = 5
	}
	if score > 10 {
		score = 10
	}
	a.OverallScore = score
	return a, nil
}

func difficulty(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return "Low"
	case "high":
		return "High"
	}
	return "Medium"
}

func sanitizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
