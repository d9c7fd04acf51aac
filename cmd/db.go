package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/refscout/refscout/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the refscout database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := utils.GetAbsDBPath(viper.GetString("db.path"))
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the video library.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		if stats.Total == 0 {
			fmt.Println("No videos in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "PLATFORM\tVIDEOS\t")
		for _, s := range stats.PerPlatform {
			fmt.Fprintf(w, "%s\t%d\t\n", s.Platform, s.Count)
		}
		fmt.Fprintln(w, " \t \t")
		fmt.Fprintf(w, "AUTO\t%d\t\n", stats.Auto)
		fmt.Fprintf(w, "MANUAL\t%d\t\n", stats.Manual)
		fmt.Fprintf(w, "TOTAL\t%d\t\n", stats.Total)
		w.Flush()

		if !stats.LastCollection.IsZero() {
			fmt.Printf("\nLast collection: %s\n", stats.LastCollection.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent collection runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRecentRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No collection runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTRIGGER\tSELECTED\tSAVED\tBREAKDOWN")
		for _, r := range runs {
			parts := make([]string, 0, len(r.Breakdown))
			for _, b := range r.Breakdown {
				parts = append(parts, fmt.Sprintf("%s:%d", b.Platform, b.Count))
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.CollectedAt.Local().Format("2006-01-02 15:04"),
				r.Trigger, r.TotalCollected, r.NewlySaved, strings.Join(parts, " "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(dbCmd, statsCmd, runsCmd)
	dbCmd.AddCommand(shellCmd)
	runsCmd.Flags().Int("limit", 20, "Number of runs to show")
}
