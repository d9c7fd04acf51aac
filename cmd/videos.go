package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
	"github.com/spf13/cobra"
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Browse and manage the video library",
}

var videosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored videos, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := storage.ListOptions{}
		if p, _ := cmd.Flags().GetString("platform"); p != "" {
			platform, err := video.ParsePlatform(p)
			if err != nil {
				return err
			}
			opts.Platform = platform
		}
		opts.CollectedBy, _ = cmd.Flags().GetString("by")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		if today, _ := cmd.Flags().GetBool("today"); today {
			y, m, d := time.Now().Date()
			opts.Since = time.Date(y, m, d, 0, 0, 0, 0, time.Local)
		}
		if s, _ := cmd.Flags().GetString("since"); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fmt.Errorf("invalid --since date: %w", err)
			}
			opts.Since = t
		}

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		videos, err := db.ListVideos(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(videos)
		}
		if len(videos) == 0 {
			fmt.Println("No videos in the library.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPLATFORM\tSCORE\tBY\tCOLLECTED\tTITLE")
		for _, v := range videos {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n", v.ID, v.Platform, v.Metrics.Score, v.CollectedBy,
				v.CollectedAt.Local().Format("2006-01-02"), truncate(v.Title, 60))
		}
		return w.Flush()
	},
}

var videosShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one video with its analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		v, err := db.GetVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var videosAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a video by hand, prefilling metadata from the platform when possible",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newHTTPClient(cmd)
		if err != nil {
			return err
		}

		item := video.Item{URL: strings.TrimSpace(args[0]), Platform: video.Other}
		if meta, err := buildResolver(client).Resolve(cmd.Context(), item.URL); err != nil {
			utils.Log.Warnf("Could not fetch metadata: %v", err)
			if ref, ok := video.ParseURL(item.URL); ok {
				item.Platform = ref.Platform
				if ref.Platform != video.Behance {
					item.URL = video.CanonicalURL(ref)
				}
			}
		} else {
			item = meta
		}
		if title, _ := cmd.Flags().GetString("title"); title != "" {
			item.Title = title
		}
		if item.Title == "" {
			item.Title = item.URL
		}
		item.CollectedBy = video.CollectedManual

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		saved, err := db.CreateVideo(cmd.Context(), item)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", saved.ID, saved.Title)
		return nil
	},
}

var videosRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteVideo(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var videosAnalyzeCmd = &cobra.Command{
	Use:   "analyze <id>",
	Short: "Run the AI production analysis for a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, err := buildAnalyzer()
		if err != nil {
			return err
		}
		if analyzer == nil {
			return fmt.Errorf("video analysis is not configured: set ai.api_key in ~/.refscout.yaml")
		}

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		v, err := db.GetVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		analysis, err := analyzer.Analyze(cmd.Context(), v)
		if err != nil {
			return err
		}
		if err := db.SetAnalysis(cmd.Context(), v.ID, analysis); err != nil {
			return err
		}
		return printJSON(analysis)
	},
}

func init() {
	rootCmd.AddCommand(videosCmd)
	videosCmd.AddCommand(videosListCmd, videosShowCmd, videosAddCmd, videosRmCmd, videosAnalyzeCmd)

	videosListCmd.Flags().String("platform", "", "Only videos from this platform")
	videosListCmd.Flags().String("by", "", "Only videos collected by: auto, manual")
	videosListCmd.Flags().String("since", "", "Only videos collected on or after this date (YYYY-MM-DD)")
	videosListCmd.Flags().Bool("today", false, "Only videos collected today")
	videosListCmd.Flags().Int("limit", 50, "Maximum number of videos to show (0 = all)")
	videosListCmd.Flags().Bool("json", false, "Print as JSON")

	videosAddCmd.Flags().String("title", "", "Title to store instead of the fetched one")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
