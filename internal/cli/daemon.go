package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobsync/internal/daemon"
	"github.com/llehouerou/scrobsync/internal/errmsg"
	"github.com/llehouerou/scrobsync/internal/logging"
	"github.com/llehouerou/scrobsync/internal/metrics"
	"github.com/llehouerou/scrobsync/internal/notify"
	"github.com/llehouerou/scrobsync/internal/schedule"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync in the background until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		syncCfg := cfg.GetSyncConfig()
		host := schedule.NewTimerHost(syncCfg.MinInterval(), syncCfg.TaskBudget())

		// The handler goes in before anything else is built; wake-ups that
		// arrive before Provide fail cleanly.
		scheduler, err := schedule.Register(host, schedule.Config{
			Interval:     syncCfg.Interval(),
			ProbeTimeout: syncCfg.ConnectivityTimeout(),
			Prober:       schedule.DialProber{Addr: syncCfg.ConnectivityAddr, Timeout: syncCfg.ConnectivityTimeout()},
		})
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpDaemonStart, err))
		}

		e, err := openFull(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		svc, err := e.service()
		if err != nil {
			return err
		}
		scheduler.Provide(schedule.Components{
			Engine:   svc,
			Session:  e.client,
			Library:  e.source,
			Recorder: e.synclog,
		})

		tree := daemon.NewTree(logging.NewSlogLogger(logging.Component("supervisor")), daemon.DefaultTreeConfig())
		tree.AddSyncService(host)
		if cfg.NotificationsEnabled() {
			notifier, err := notify.New(notify.AppName)
			if err != nil {
				return errors.New(errmsg.Format(errmsg.OpDaemonStart, err))
			}
			tree.AddAuxService(notify.NewAnnouncer(notifier, scheduler))
		}
		if cfg.HasMetricsConfig() {
			tree.AddAuxService(metrics.NewServer(cfg.Metrics.Addr))
		}

		if err := scheduler.Start(); err != nil {
			return errors.New(errmsg.Format(errmsg.OpDaemonStart, err))
		}
		defer scheduler.Stop()

		logging.Info().Dur("interval", syncCfg.Interval()).Str("user", e.client.Username()).
			Msg("background sync started")

		err = tree.Serve(cmd.Context())
		svc.Wait()
		if errors.Is(err, cmd.Context().Err()) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
