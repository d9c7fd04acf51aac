package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/refscout/refscout/internal/runner"
	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/collect"
	"github.com/refscout/refscout/pkg/metadata"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/settings"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateVideo), errors.Is(err, utils.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, settings.ErrInvalid), errors.Is(err, metadata.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, platforms.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		utils.Log.Errorf("API error: %v", err)
	}
	writeError(w, status, err.Error())
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.ListOptions{CollectedBy: q.Get("collectedBy")}

	if p := q.Get("platform"); p != "" {
		platform, err := video.ParsePlatform(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Platform = platform
	}
	var err error
	if opts.Since, err = parseDate(q.Get("since")); err != nil {
		writeError(w, http.StatusBadRequest, "since: "+err.Error())
		return
	}
	if opts.Until, err = parseDate(q.Get("until")); err != nil {
		writeError(w, http.StatusBadRequest, "until: "+err.Error())
		return
	}
	if l := q.Get("limit"); l != "" {
		if opts.Limit, err = strconv.Atoi(l); err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
	}

	videos, err := s.DB.ListVideos(r.Context(), opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// parseDate accepts RFC3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (s *Server) handleAddVideo(w http.ResponseWriter, r *http.Request) {
	var item video.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.URL = strings.TrimSpace(item.URL)
	if item.URL == "" {
		writeError(w, http.StatusBadRequest, "videoUrl is required")
		return
	}

	if item.Title == "" && s.Resolver != nil {
		if meta, err := s.Resolver.Resolve(r.Context(), item.URL); err == nil {
			item = mergeMetadata(item, meta)
		} else {
			utils.Log.Debugf("Metadata lookup for %s failed: %v", item.URL, err)
		}
	}
	// Store recognised links in the form the search adapters report them.
	if ref, ok := video.ParseURL(item.URL); ok && ref.Platform != video.Behance {
		item.URL = video.CanonicalURL(ref)
	}
	if item.Platform == "" {
		item.Platform = video.Other
		if ref, ok := video.ParseURL(item.URL); ok {
			item.Platform = ref.Platform
		}
	} else if _, err := video.ParsePlatform(string(item.Platform)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if item.Title == "" {
		item.Title = item.URL
	}
	item.ID = ""
	item.CollectedBy = video.CollectedManual

	saved, err := s.DB.CreateVideo(r.Context(), item)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// mergeMetadata fills the fields the caller left empty.
func mergeMetadata(item, meta video.Item) video.Item {
	if meta.URL != "" {
		item.URL = meta.URL
	}
	if item.Title == "" {
		item.Title = meta.Title
	}
	if item.Description == "" {
		item.Description = meta.Description
	}
	if item.ThumbnailURL == "" {
		item.ThumbnailURL = meta.ThumbnailURL
	}
	if item.Author == "" {
		item.Author = meta.Author
	}
	if item.Platform == "" {
		item.Platform = meta.Platform
	}
	if item.DurationSeconds == 0 {
		item.DurationSeconds = meta.DurationSeconds
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = meta.PublishedAt
	}
	if item.Metrics == (video.Metrics{}) {
		item.Metrics = meta.Metrics
	}
	if len(item.Tags) == 0 {
		item.Tags = meta.Tags
	}
	return item
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := s.DB.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteVideo(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

func (s *Server) handleAnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	if s.Analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "video analysis is not configured")
		return
	}
	v, err := s.DB.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	analysis, err := s.Analyzer.Analyze(r.Context(), v)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.DB.SetAnalysis(r.Context(), v.ID, analysis); err != nil {
		s.fail(w, err)
		return
	}
	v.Analysis = analysis
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.Collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collection is not configured")
		return
	}
	// Concurrent requests share one run, which must outlive any single client.
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.runs.Do("collect", func() (interface{}, error) {
		return s.Collector.Run(ctx, runner.TriggerAPI)
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if shared {
		utils.Log.Debug("Collect request joined a run already in flight")
	}
	writeJSON(w, http.StatusOK, v.(*collect.Result))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.DB.GetSettings(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var prefs settings.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.DB.SaveSettings(r.Context(), prefs)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.DB.ResetSettings(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type metadataRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if s.Resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata lookup is not configured")
		return
	}
	item, err := s.Resolver.Resolve(r.Context(), req.URL)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.DB.ListRecentRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
