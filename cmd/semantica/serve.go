package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/semantica/internal/config"
	"github.com/hyperjump/semantica/internal/server"
	"github.com/hyperjump/semantica/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	host  string
	port  int
	watch bool
}

func newServeCommand(g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, o, cmd.Flags())
		},
	}
	cmd.Flags().StringVar(&o.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&o.port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&o.watch, "watch", false, "reload the index when its file changes (file backend only)")
	return cmd
}

// applyServeFlags copies explicitly set flags over the configured values.
func applyServeFlags(fs *pflag.FlagSet, o *serveOptions, cfg *config.ServerConfig) {
	if fs.Changed("host") {
		cfg.Host = o.host
	}
	if fs.Changed("port") {
		cfg.Port = o.port
	}
	if fs.Changed("watch") {
		cfg.Watch = o.watch
	}
}

func runServe(ctx context.Context, g *globalOptions, o *serveOptions, fs *pflag.FlagSet) error {
	a, err := openApp(ctx, g, true)
	if err != nil {
		return err
	}
	defer a.Close()
	applyServeFlags(fs, o, &a.cfg.Server)

	x, err := a.repo.Load(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("index loaded",
		zap.String("config_path", a.configPath),
		zap.String("index", a.cfg.Index.Path),
		zap.Int("entries", x.Len()),
	)
	srv := server.NewServer(a.repo, x, &a.cfg.Server, a.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Server.Watch {
		if a.cfg.Storage.Backend != "file" {
			a.logger.Warn("watch is only supported by the file backend", zap.String("backend", a.cfg.Storage.Backend))
		} else {
			w := watcher.NewWatcher(a.cfg.Index.Path, func(string) {
				if err := srv.Reload(ctx); err != nil {
					a.logger.Warn("reload failed", zap.Error(err))
				}
			}, watcher.WithLogger(a.logger))
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		a.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return eg.Wait()
}
