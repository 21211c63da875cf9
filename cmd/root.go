// Package cmd defines and implements the CLI commands for the tabelog2kml executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tabelog2kml/internal/config"
	"github.com/JakeFAU/tabelog2kml/internal/id/uuid"
	"github.com/JakeFAU/tabelog2kml/internal/logging"
	"github.com/JakeFAU/tabelog2kml/internal/metrics"
	"github.com/JakeFAU/tabelog2kml/internal/pipeline"
	"github.com/JakeFAU/tabelog2kml/internal/storage/memory"
)

const defaultConfigPath = "example.yaml"

type rootOptions struct {
	configPath string
	dryRun     bool
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tabelog2kml",
		Short: "Convert a list of tabelog restaurant pages into a KML map layer.",
		Long: `tabelog2kml reads a YAML list of tabelog review pages, fetches them
concurrently, extracts name, genre, location, closing days and photos from
each page and writes a KML document that mapping tools can import.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the document to stdout instead of writing the output")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runConvert(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewWithOptions(logging.Options{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("run_id", uuid.NewRunID()))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		pipelineOpts pipeline.Options
		dryStore     *memory.BlobStore
	)
	if opts.dryRun {
		dryStore = memory.NewBlobStore()
		pipelineOpts.Store = dryStore
	}

	runner, job, closeOutput, err := pipeline.FromConfig(ctx, cfg, logger, pipelineOpts)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return err
	}
	defer func() {
		if cerr := closeOutput(); cerr != nil {
			logger.Warn("failed to close output", zap.Error(cerr))
		}
	}()

	logger.Info("run started",
		zap.String("config", opts.configPath),
		zap.String("variant", cfg.Variant),
		zap.Int("restaurants", len(job.Entries)),
		zap.Bool("dry_run", opts.dryRun),
	)
	res, runErr := runner.Run(ctx, job)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr), zap.Duration("duration", res.Duration))
		return runErr
	}

	logger.Info("run finished",
		zap.String("uri", res.URI),
		zap.Int("placemarks", res.Placemarks),
		zap.Duration("duration", res.Duration),
	)
	if dryStore != nil {
		data, _, _ := dryStore.Object(job.Object)
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("write document to stdout: %w", err)
		}
	}
	return nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tabelog2kml: %v\n", err)
		os.Exit(1)
	}
}
