package cmd

import (
	"github.com/refscout/refscout/internal/server"
	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the refscout REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		interval, _ := cmd.Flags().GetDuration("collect-interval")
		dev, _ := cmd.Flags().GetBool("dev")

		// A CLI run holding the lock surfaces as 409.
		r, cleanup, err := newRunner(cmd, dev, false)
		if err != nil {
			return err
		}
		defer cleanup()
		r.Metrics = metrics.New()

		client, err := newHTTPClient(cmd)
		if err != nil {
			return err
		}

		s := server.New(r.DB, viper.GetString("server.username"), viper.GetString("server.password"))
		s.Collector = r
		s.Resolver = buildResolver(client)
		s.Metrics = r.Metrics
		if r.Analyzer != nil {
			s.Analyzer = r.Analyzer
		}
		if s.Username == "" {
			utils.Log.Warn("server.username is empty: the API is served without authentication")
		}

		if interval > 0 {
			utils.Log.Infof("Collecting every %s", interval)
			go r.Every(cmd.Context(), interval)
		}

		return s.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("collect-interval", 0, "Collect on a schedule, e.g. 24h (0 to disable)")
	serveCmd.Flags().Bool("dev", false, "Use the offline catalog instead of the platform APIs")
}
