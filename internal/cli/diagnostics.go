package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobsync/internal/errmsg"
	"github.com/llehouerou/scrobsync/internal/state"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

var historyLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent sync attempts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()

		entries := e.synclog.Entries()
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No sync attempts recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				humanize.Time(entry.Timestamp), entry.Trigger, entry.Outcome, entry.Accepted, entry.Message)
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently scrobbled tracks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()

		entries, err := e.store.RecentHistory(cmd.Context(), historyLimit)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpHistoryLoad, err))
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No scrobbles mirrored yet. Run `scrobsync sync`.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, h := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.Time(h.ScrobbledAt), h.Artist, h.Title, h.Album)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account, cache and last sync state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		session, err := e.store.Session(ctx)
		linked := err == nil
		if err != nil && !errors.Is(err, state.ErrNoSession) {
			return errors.New(errmsg.Format(errmsg.OpStatusLoad, err))
		}
		snapshots, err := e.store.SnapshotCount(ctx)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpStatusLoad, err))
		}
		history, err := e.store.HistoryCount(ctx)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpStatusLoad, err))
		}
		lastPrune, err := e.store.LastPrune(ctx)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpStatusLoad, err))
		}

		if linked {
			fmt.Fprintf(out, "Account:     %s (linked %s)\n", session.Username, humanize.Time(session.LinkedAt))
		} else {
			fmt.Fprintln(out, "Account:     not linked")
		}
		fmt.Fprintf(out, "Library:     %s\n", cfg.GetLibraryConfig().Source)
		fmt.Fprintf(out, "Tracks:      %s cached\n", humanize.Comma(int64(snapshots)))
		fmt.Fprintf(out, "History:     %s scrobbles mirrored\n", humanize.Comma(int64(history)))
		if !lastPrune.IsZero() {
			fmt.Fprintf(out, "Last prune:  %s\n", humanize.Time(lastPrune))
		}
		if last, ok := e.synclog.Last(); ok {
			fmt.Fprintf(out, "Last sync:   %s, %s", humanize.Time(last.Timestamp), describe(last))
			fmt.Fprintln(out)
		}
		return nil
	},
}

func describe(e synclog.Entry) string {
	switch e.Outcome {
	case synclog.Succeeded:
		return fmt.Sprintf("%d accepted", e.Accepted)
	case synclog.Failed:
		return "failed: " + e.Message
	default:
		return string(e.Outcome)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of scrobbles to show")
	rootCmd.AddCommand(logCmd, historyCmd, statusCmd)
}
