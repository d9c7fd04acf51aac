package cmd

import (
	"fmt"

	"github.com/refscout/refscout/pkg/settings"
	"github.com/refscout/refscout/pkg/video"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the collection preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prefs, err := db.GetSettings(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(prefs)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more preferences",
	Example: `  refscout settings set --genre "Kinetic Typography" --platforms vimeo,behance --limit 4
  refscout settings set --recency 6_months --auto-analyze=false`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prefs, err := db.GetSettings(cmd.Context())
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("genre") {
			prefs.PrimaryTopic, _ = flags.GetString("genre")
		}
		if flags.Changed("focus") {
			prefs.SecondaryFocus, _ = flags.GetString("focus")
		}
		if flags.Changed("tools") {
			prefs.Tools, _ = flags.GetStringSlice("tools")
		}
		if flags.Changed("styles") {
			prefs.Styles, _ = flags.GetStringSlice("styles")
		}
		if flags.Changed("recency") {
			r, _ := flags.GetString("recency")
			prefs.Recency = settings.RecencyWindow(r)
		}
		if flags.Changed("ranking") {
			r, _ := flags.GetString("ranking")
			prefs.Ranking = settings.RankingMode(r)
		}
		if flags.Changed("limit") {
			prefs.TargetCount, _ = flags.GetInt("limit")
		}
		if flags.Changed("auto-analyze") {
			prefs.AutoAnalyze, _ = flags.GetBool("auto-analyze")
		}
		if flags.Changed("platforms") {
			names, _ := flags.GetStringSlice("platforms")
			prefs.Platforms = prefs.Platforms[:0]
			for _, n := range names {
				p, err := video.ParsePlatform(n)
				if err != nil {
					return err
				}
				prefs.Platforms = append(prefs.Platforms, p)
			}
		}

		saved, err := db.SaveSettings(cmd.Context(), prefs)
		if err != nil {
			return err
		}
		return printJSON(saved)
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default preferences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prefs, err := db.ResetSettings(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("Preferences reset to defaults.")
		return printJSON(prefs)
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd)

	f := settingsSetCmd.Flags()
	f.String("genre", "", "Primary topic, e.g. Motion Graphics")
	f.String("focus", "", "Secondary focus, e.g. Motion Rhythm Analysis")
	f.StringSlice("tools", nil, "Tools to search for (comma separated)")
	f.StringSlice("styles", nil, "Styles to search for (comma separated)")
	f.String("recency", "", "Recency window: 3_months, 6_months, 1_year, all")
	f.StringSlice("platforms", nil, "Platforms to search: youtube, vimeo, behance")
	f.Int("limit", 0, fmt.Sprintf("Videos to keep per run (1-%d)", settings.MaxTargetCount))
	f.String("ranking", "", "Ranking mode: creative_quality, editors_pick")
	f.Bool("auto-analyze", true, "Analyze newly saved videos after each run")
}
