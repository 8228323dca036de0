package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ritzau/incbuild/pkg/build"
	"github.com/ritzau/incbuild/pkg/compiler"
	"github.com/ritzau/incbuild/pkg/config"
	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/output"
	"github.com/ritzau/incbuild/pkg/state"
	"github.com/ritzau/incbuild/pkg/web"
)

// version is set at link time: -ldflags "-X main.version=1.2.3"
var version = "dev"

// exitCodeError carries a non-zero build exit code up to main
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("build exited with code %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	var exit *exitCodeError
	if errors.As(err, &exit) {
		stop()
		os.Exit(exit.code)
	}

	logging.Debug("command failed", "error", err)
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	stop()
	os.Exit(build.ExitFailure)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "incbuild",
		Short:         "Incremental build tool for Java projects",
		Long:          "incbuild recompiles only the sources whose inputs changed since the last build.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE:          runBuild,
	}

	f := root.PersistentFlags()
	f.String("project", ".", "project folder")
	f.String("source-dir", "src", "source folder, relative to the project")
	f.String("output-dir", "out", "output folder for compiled classes")
	f.String("state-file", ".incbuild/state.json", "build state file")
	f.String("manifest", "project.json", "project manifest")
	f.String("package-store", "~/.incbuild/packages", "local package store")
	f.String("compiler", compiler.DefaultExecutable, "compiler executable")
	f.String("extension", ".java", "source file extension")
	f.StringArray("lint", []string{"-Xlint:all"}, "lint flag passed to the compiler (repeatable)")
	f.String("verbosity", "", "log level: trace, debug, info, warn or error")
	f.CountP("verbose", "v", "increase verbosity (-v debug, -vv trace)")
	f.Bool("json-logs", false, "log in JSON format")
	f.Int("port", 8080, "port for the status API")
	f.Int("quiet", 300, "watch: quiet period before rebuilding, ms")
	f.Int("max-wait", 2000, "watch: longest delay before rebuilding, ms")

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Run one incremental build",
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever sources or the manifest change",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	watchCmd.Flags().Bool("serve", false, "serve the status API while watching")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the persisted build state read-only",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Print the persisted build state",
		Args:  cobra.NoArgs,
		RunE:  runState,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "incbuild", version)
		},
	}

	root.AddCommand(buildCmd, watchCmd, serveCmd, stateCmd, versionCmd)
	return root
}

// setup loads the configuration and configures logging
func setup(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
	logging.Debug("configuration loaded", "project", cfg.Project, "sourceDir", cfg.SourceDir, "outputDir", cfg.OutputDir)
	return cfg, nil
}

func newBuilder(cfg *config.Config) (*build.Builder, error) {
	opts, err := cfg.BuildOptions()
	if err != nil {
		return nil, err
	}
	return build.New(opts, compiler.New(cfg.Compiler, opts.Root)), nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd.Flags())
	if err != nil {
		return err
	}

	builder, err := newBuilder(cfg)
	if err != nil {
		return err
	}

	report, err := build.NewRunner(builder, nil).Run(cmd.Context(), "build command")
	if err != nil {
		return err
	}

	output.PrintBuildReport(cmd.OutOrStdout(), filepath.Base(builder.Options.Root), report)
	if report.ExitCode != 0 {
		return &exitCodeError{code: report.ExitCode}
	}
	return nil
}

func loadState(cfg *config.Config) (*state.BuildState, error) {
	opts, err := cfg.BuildOptions()
	if err != nil {
		return nil, err
	}
	path := opts.StateFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(opts.Root, path)
	}
	return state.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd.Flags())
	if err != nil {
		return err
	}

	st, err := loadState(cfg)
	if err != nil {
		return err
	}

	srv := web.NewServer(nil)
	srv.SetState(st)
	return srv.Start(cmd.Context(), cfg.Port)
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd.Flags())
	if err != nil {
		return err
	}

	st, err := loadState(cfg)
	if err != nil {
		return err
	}

	output.PrintStateSummary(cmd.OutOrStdout(), st)
	return nil
}
