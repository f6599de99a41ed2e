package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/mofflow/pkg/gateway"
	"github.com/harun/mofflow/pkg/runstore"
	"github.com/harun/mofflow/pkg/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workflows over the HTTP gateway",
	Long: `Serve starts the long-running gateway: workflow requests come in over
HTTP, progress events stream out over websocket, and finished runs are
archived to the local run store with scheduled retention sweeps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The gateway's phase hook has to exist before the orchestrator,
		// and the orchestrator before the gateway's runner. The indirection
		// through srv breaks the cycle; both are set before Start.
		var srv *gateway.Server

		rt, err := newRuntime(workflow.WithHook(func(phase workflow.Phase, st *workflow.State) {
			if srv != nil {
				srv.PhaseHook()(phase, st)
			}
		}))
		if err != nil {
			return err
		}
		defer rt.Close()

		zl := rt.log.Zerolog()

		var store *runstore.Store
		var retention *runstore.Retention
		if !rt.cfg.Store.ArchiveDisabled {
			store, err = runstore.Open(rt.cfg.Store.Path, zl)
			if err != nil {
				return err
			}
			defer store.Close()

			retention = runstore.NewRetention(
				store,
				time.Duration(rt.cfg.Store.RetentionDays)*24*time.Hour,
				rt.cfg.Store.RetentionCron,
				zl,
			)
			if err := retention.Start(); err != nil {
				return err
			}
			defer retention.Stop()
		}

		if err := rt.library.Watch(); err != nil {
			zl.Warn().Err(err).Msg("Structure library watcher unavailable")
		}

		srv, err = gateway.NewServer(gateway.Config{
			Port:         rt.cfg.Gateway.Port,
			SharedSecret: rt.cfg.Gateway.SharedSecret,
			Runner:       rt.orch.Run,
			Store:        store,
			Logger:       zl,
		})
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			zl.Info().Str("signal", sig.String()).Msg("Shutting down")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
