package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/incbuild/pkg/build"
	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/output"
	"github.com/ritzau/incbuild/pkg/watcher"
	"github.com/ritzau/incbuild/pkg/web"
)

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd.Flags())
	if err != nil {
		return err
	}

	builder, err := newBuilder(cfg)
	if err != nil {
		return err
	}
	opts := builder.Options
	project := filepath.Base(opts.Root)

	srv := web.NewServer(nil)
	builder.Publisher = srv.Publisher()

	runner := build.NewRunner(builder, srv)
	runner.OnReport = func(r *build.Report) {
		output.PrintBuildReport(cmd.OutOrStdout(), project, r)
	}

	fw, err := watcher.NewFileWatcher(
		filepath.Join(opts.Root, opts.SourceDir),
		filepath.Join(opts.Root, opts.ManifestPath),
		opts.Extension,
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	if cfg.Serve {
		g.Go(func() error {
			return srv.Start(ctx, cfg.Port)
		})
	}

	g.Go(func() error {
		return watchLoop(ctx, runner, fw, cfg.QuietPeriod(), cfg.MaxWaitPeriod())
	})

	return g.Wait()
}

// watchLoop builds once, then rebuilds after every debounced change until
// ctx is done. Failed builds are logged and watching continues.
func watchLoop(ctx context.Context, runner *build.Runner, fw *watcher.FileWatcher, quiet, maxWait time.Duration) error {
	if _, err := runner.Run(ctx, "initial build"); err != nil {
		logging.Warn("initial build failed, waiting for changes", "error", err)
	}

	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), quiet, maxWait)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		analysis := watcher.AnalyzeChanges(event)
		if !analysis.NeedBuild {
			continue
		}
		logging.Debug("changes detected", "type", event.Type, "files", analysis.ChangedFiles)
		if _, err := runner.Run(ctx, analysis.Reason()); err != nil && ctx.Err() == nil {
			logging.Warn("build failed, waiting for changes", "reason", analysis.Reason(), "error", err)
		}
	}

	logging.Info("stopped watching")
	return nil
}
