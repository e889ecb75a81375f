package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobsync/internal/errmsg"
	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/state"
)

var logout bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Link your Last.fm account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		out := cmd.OutOrStdout()

		if logout {
			if err := e.store.DeleteSession(cmd.Context()); err != nil {
				return errors.New(errmsg.Format(errmsg.OpLogout, err))
			}
			fmt.Fprintln(out, "Last.fm account unlinked.")
			return nil
		}

		if !cfg.HasLastfmConfig() {
			return errNoCredentials
		}
		client := newClient()

		server, err := lastfm.StartAuthServer(lastfm.DefaultCallbackAddr)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpAuthStart, err))
		}
		defer server.Shutdown()

		url := client.GetCallbackAuthURL(server.CallbackURL())
		fmt.Fprintf(out, "Approve access in your browser:\n  %s\n", url)
		if err := lastfm.OpenBrowser(url); err != nil {
			fmt.Fprintln(out, "Could not open a browser, open the link above manually.")
		}

		token, err := lastfm.WaitForToken(cmd.Context(), server.TokenChan(), lastfm.AuthTimeout)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpAuthFinish, err))
		}
		username, key, err := client.GetSession(token)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpAuthFinish, err))
		}
		if err := e.store.SaveSession(cmd.Context(), state.Session{Username: username, Key: key}); err != nil {
			return errors.New(errmsg.Format(errmsg.OpAuthFinish, err))
		}

		fmt.Fprintf(out, "Linked Last.fm account %s.\n", username)
		return nil
	},
}

func init() {
	authCmd.Flags().BoolVar(&logout, "logout", false, "unlink the stored Last.fm account")
	rootCmd.AddCommand(authCmd)
}
