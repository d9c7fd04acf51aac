package cmd

import (
	"errors"
	"fmt"

	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/ai"
	"github.com/refscout/refscout/pkg/metadata"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/platforms/behance"
	devplatform "github.com/refscout/refscout/pkg/platforms/dev"
	"github.com/refscout/refscout/pkg/platforms/vimeo"
	"github.com/refscout/refscout/pkg/platforms/youtube"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
	"github.com/refscout/refscout/pkg/whttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openDB opens the configured database, creating its directory on first use.
func openDB() (*storage.DB, string, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve db path: %w", err)
	}
	if err := utils.EnsureDBDir(path); err != nil {
		return nil, "", err
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, "", err
	}
	return db, path, nil
}

func newHTTPClient(cmd *cobra.Command) (*whttp.Client, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	var opts []whttp.Option
	if proxy != "" {
		opts = append(opts, whttp.WithProxy(proxy))
	}
	return whttp.NewClient(opts...)
}

// clients holds every platform client that could be configured.
type clients struct {
	YouTube *youtube.Searcher
	Vimeo   *vimeo.Searcher
	Behance *behance.Searcher
	Pages   *behance.PageScraper
}

func buildClients(client *whttp.Client) clients {
	var c clients
	var err error

	if c.YouTube, err = youtube.New(viper.GetString("youtube.api_key"), client); err != nil {
		utils.Log.Info("Skipping YouTube: youtube.api_key not found in config.")
	}
	if c.Vimeo, err = vimeo.New(viper.GetString("vimeo.token"), client); err != nil {
		utils.Log.Info("Skipping Vimeo: vimeo.token not found in config.")
	}
	if c.Behance, err = behance.New(viper.GetString("behance.api_key"), client); err != nil {
		utils.Log.Info("Skipping Behance: behance.api_key not found in config.")
	}
	c.Pages = behance.NewPageScraper(client)
	return c
}

// buildSearchers returns the searchers a collection run can use. With dev set
// every searchable platform is served from the offline catalog.
func buildSearchers(client *whttp.Client, dev bool) []platforms.Searcher {
	if dev {
		var out []platforms.Searcher
		for _, p := range video.SearchablePlatforms() {
			out = append(out, devplatform.New(p))
		}
		return out
	}

	c := buildClients(client)
	var out []platforms.Searcher
	if c.YouTube != nil {
		out = append(out, c.YouTube)
	}
	if c.Vimeo != nil {
		out = append(out, c.Vimeo)
	}
	if c.Behance != nil {
		out = append(out, c.Behance)
	}
	return out
}

// requireSearchers fails when a run would have nothing to search.
func requireSearchers(searchers []platforms.Searcher) error {
	if len(searchers) == 0 {
		return fmt.Errorf("%w: no platform API keys found in ~/.refscout.yaml (or run with --dev)", platforms.ErrNotConfigured)
	}
	return nil
}

func buildResolver(client *whttp.Client) *metadata.Resolver {
	c := buildClients(client)
	r := &metadata.Resolver{Behance: c.Pages}
	if c.YouTube != nil {
		r.YouTube = c.YouTube
	}
	if c.Vimeo != nil {
		r.Vimeo = c.Vimeo
	}
	return r
}

// buildAnalyzer returns nil without error when no AI key is configured.
func buildAnalyzer() (*ai.OpenAIAnalyzer, error) {
	a, err := ai.NewAnalyzer(ai.Config{
		Provider: viper.GetString("ai.provider"),
		APIKey:   viper.GetString("ai.api_key"),
		Model:    viper.GetString("ai.model"),
		Endpoint: viper.GetString("ai.endpoint"),
	})
	if errors.Is(err, ai.ErrNoAPIKey) {
		return nil, nil
	}
	return a, err
}
