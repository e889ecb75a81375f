package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobsync/internal/errmsg"
	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/scrobble"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	Long: `Reads play counts from the library, submits plays detected since the
last pass to Last.fm, then refreshes the local scrobble history and prunes
stale cache entries.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openFull(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		if !e.client.IsAuthenticated() {
			return errors.New(errmsg.Format(errmsg.OpSync, fmt.Errorf("%w: run `scrobsync auth` first", lastfm.ErrNotAuthenticated)))
		}

		svc, err := e.service()
		if err != nil {
			return err
		}
		res, err := svc.Sync(cmd.Context(), scrobble.Options{IncludeNonCritical: true, Trigger: synclog.Manual})
		// Let the history refresh and prune finish before exiting.
		svc.Wait()
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpSync, err))
		}

		out := cmd.OutOrStdout()
		if res.FirstSync {
			fmt.Fprintln(out, "First sync: recorded current play counts. New plays will be submitted from now on.")
			return nil
		}
		fmt.Fprintln(out, summary(res))
		return nil
	},
}

func summary(res scrobble.Result) string {
	if res.Candidates == 0 {
		return "No new plays."
	}
	s := fmt.Sprintf("Scrobbled %s", english.Plural(res.Accepted, "play", ""))
	if res.Ignored > 0 {
		s += fmt.Sprintf(", %d ignored by Last.fm", res.Ignored)
	}
	if res.Deferred > 0 {
		s += fmt.Sprintf(", %d left for the next pass", res.Deferred)
	}
	return s + "."
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
