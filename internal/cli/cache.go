package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobsync/internal/errmsg"
	"github.com/llehouerou/scrobsync/internal/scrobble"
)

var (
	clearSnapshots bool
	clearHistory   bool
	clearLog       bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage local caches",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached data (all of it when no flag is given)",
	Long: `Clears the snapshot cache, the mirrored history and the sync log.

Clearing snapshots makes the next pass a first sync: current play counts
become the new baseline and nothing is submitted for that pass. Caches are
not cleared while a sync is running, including one run by the daemon.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearSnapshots && !clearHistory && !clearLog {
			clearSnapshots, clearHistory, clearLog = true, true, true
		}

		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if clearSnapshots || clearHistory {
			if err := scrobble.ClearStore(ctx, e.store, e.lock, clearSnapshots, clearHistory); err != nil {
				return errors.New(errmsg.Format(errmsg.OpSyncClear, err))
			}
			if clearSnapshots {
				fmt.Fprintln(out, "Snapshot cache cleared.")
			}
			if clearHistory {
				fmt.Fprintln(out, "History cleared.")
			}
		}
		if clearLog {
			if err := e.synclog.Clear(); err != nil {
				return errors.New(errmsg.Format(errmsg.OpSyncClear, err))
			}
			fmt.Fprintln(out, "Sync log cleared.")
		}
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&clearSnapshots, "snapshots", false, "clear the snapshot cache")
	cacheClearCmd.Flags().BoolVar(&clearHistory, "history", false, "clear the mirrored history")
	cacheClearCmd.Flags().BoolVar(&clearLog, "log", false, "clear the sync log")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
