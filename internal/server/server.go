package server

import (
	"context"
	"net/http"
	"time"

	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/ai"
	"github.com/refscout/refscout/pkg/collect"
	"github.com/refscout/refscout/pkg/metrics"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
	"golang.org/x/sync/singleflight"
)

// Collector runs one collection, see runner.Runner.
type Collector interface {
	Run(ctx context.Context, trigger string) (*collect.Result, error)
}

// Resolver prefills video metadata from a link, see metadata.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (video.Item, error)
}

type Server struct {
	DB        *storage.DB
	Collector Collector        // nil disables POST /api/collect
	Analyzer  ai.Analyzer      // nil disables analysis
	Resolver  Resolver         // nil disables metadata lookup
	Metrics   *metrics.Metrics // nil disables /metrics
	Username  string
	Password  string

	runs singleflight.Group
}

func New(db *storage.DB, user, pass string) *Server {
	return &Server{
		DB:       db,
		Username: user,
		Password: pass,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/videos", s.basicAuth(s.handleListVideos))
	mux.HandleFunc("POST /api/videos", s.basicAuth(s.handleAddVideo))
	mux.HandleFunc("GET /api/videos/{id}", s.basicAuth(s.handleGetVideo))
	mux.HandleFunc("DELETE /api/videos/{id}", s.basicAuth(s.handleDeleteVideo))
	mux.HandleFunc("POST /api/videos/{id}/analyze", s.basicAuth(s.handleAnalyzeVideo))
	mux.HandleFunc("POST /api/collect", s.basicAuth(s.handleCollect))
	mux.HandleFunc("GET /api/settings", s.basicAuth(s.handleGetSettings))
	mux.HandleFunc("POST /api/settings", s.basicAuth(s.handleSaveSettings))
	mux.HandleFunc("DELETE /api/settings", s.basicAuth(s.handleResetSettings))
	mux.HandleFunc("POST /api/video/metadata", s.basicAuth(s.handleMetadata))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/runs", s.basicAuth(s.handleRuns))

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Starting server on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
