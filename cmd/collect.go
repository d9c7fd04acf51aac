package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/refscout/refscout/internal/runner"
	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/collect"
	"github.com/spf13/cobra"
)

// collectCmd implements: refscout collect
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Search every configured platform and save today's references",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'refscout collect --help'", args[0])
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		dev, _ := cmd.Flags().GetBool("dev")
		wait, _ := cmd.Flags().GetBool("wait")

		r, cleanup, err := newRunner(cmd, dev, wait)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := requireSearchers(r.Searchers); err != nil {
			return err
		}

		res, err := r.Run(cmd.Context(), runner.TriggerCLI)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().Bool("json", false, "Print the run result as JSON")
	collectCmd.Flags().Bool("dev", false, "Use the offline catalog instead of the platform APIs")
	collectCmd.Flags().Bool("wait", false, "Wait for a running collection instead of failing")
}

// newRunner wires a runner against the configured database. The returned
// cleanup closes the database.
func newRunner(cmd *cobra.Command, dev, wait bool) (*runner.Runner, func(), error) {
	db, path, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	lock, err := utils.NewRunLock(path, wait)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	client, err := newHTTPClient(cmd)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	r := &runner.Runner{
		DB:        db,
		Searchers: buildSearchers(client, dev),
		Locker:    lock,
		Log:       utils.CollectLogger{},
	}
	analyzer, err := buildAnalyzer()
	if err != nil {
		utils.Log.Warnf("Video analysis disabled: %v", err)
	} else if analyzer != nil {
		r.Analyzer = analyzer
		r.Workers = analyzer.Concurrency()
	}
	return r, func() { db.Close() }, nil
}

func printResult(res *collect.Result) {
	for _, pc := range res.PlatformBreakdown {
		fmt.Printf("%-8s %d candidates\n", pc.Platform, pc.Count)
	}
	fmt.Println()
	for _, v := range res.Videos {
		state := "new"
		if v.ID == "" {
			state = "not saved"
		}
		fmt.Printf("[%s] %5.2f  %s  %s  (%s)\n", v.Platform, v.Metrics.Score, v.Title, v.URL, state)
		if v.Analysis != nil {
			fmt.Printf("          %s\n", v.Analysis.OneLineSummary)
		}
	}
	fmt.Printf("\n%d selected, %d newly saved\n", res.TotalCollected, res.NewlySaved)
}
