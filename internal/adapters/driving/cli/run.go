package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/cmsync/internal/adapters/driving/watcher"
	"github.com/custodia-labs/cmsync/internal/adapters/driving/web"
	"github.com/custodia-labs/cmsync/internal/logger"
)

var (
	runNoWatch bool
	runNoWeb   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long: `Runs the daemon until interrupted.

Scan directories are processed on their intervals and job files dropped
into the job inboxes are executed. Directories with watch = true are
also scanned as soon as files appear. While the repository is
unreachable all work is paused and the connection is probed every
daemon.connection_retry_interval_seconds.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "disable filesystem watching")
	runCmd.Flags().BoolVar(&runNoWeb, "no-web", false, "disable the status web page")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := scheduler.Start(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	var w *watcher.Watcher
	if !runNoWatch {
		var err error
		w, err = watcher.New(appConfig, scheduler)
		if err != nil {
			logger.Warn("run: filesystem watching disabled: %v", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	var srv *web.Server
	if appConfig.Web.Enabled && !runNoWeb {
		srv = web.NewServer(appConfig.Web.ListenAddress, scheduler, historyService)
		if err := srv.Start(); err != nil {
			logger.Error("run: status page disabled: %v", err)
			srv = nil
		} else {
			cmd.Printf("Status page: http://%s/\n", srv.Addr())
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				case err := <-srv.Errors():
					return fmt.Errorf("web server: %w", err)
				}
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("run: shutting down")
		err := scheduler.Stop()
		if w != nil {
			err = multierr.Append(err, w.Close())
		}
		if srv != nil {
			err = multierr.Append(err, srv.Stop())
		}
		return err
	})

	cmd.Println("cmsync daemon running. Press Ctrl+C to stop.")
	logger.Section("daemon")
	if err := g.Wait(); err != nil {
		return err
	}
	cmd.Println("cmsync daemon stopped.")
	return nil
}
