// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/areino/taegis-detection-analysis/internal/analyze"
	"github.com/areino/taegis-detection-analysis/internal/config"
	"github.com/areino/taegis-detection-analysis/internal/ingest"
	"github.com/areino/taegis-detection-analysis/internal/observability"
	"github.com/areino/taegis-detection-analysis/internal/report"
)

var cfgFile string

// rootCmd is the whole CLI surface: one command that runs the analysis.
var rootCmd = &cobra.Command{
	Use:   "taegis-analyze <detections.csv>",
	Short: "Aggregate a Taegis XDR detection export and render a Sankey diagram",
	Long: `Streams a large CSV export of Taegis XDR detections in bounded chunks,
aggregates counts along sensor type, severity and status, prints summary
statistics, and renders a sensor → severity → status Sankey diagram.`,
	Version:       Version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		cfg.Analysis.InputPath = args[0]

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		config.Set(&cfg)
		observability.InitializeLogger(cfg.Logger)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd.Context(), config.Get(), cmd.OutOrStdout())
	},
}

// runAnalysis is the driver: it wires the chunked reader, the aggregator and
// the renderers in sequence and owns the run's only mutable state.
func runAnalysis(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger := observability.GetLogger().With(zap.String("run_id", uuid.NewString()))

	logger.Info("Starting detection analysis.",
		zap.String("input", cfg.Analysis.InputPath),
		zap.Int("chunk_size", cfg.Analysis.ChunkSize),
		zap.Bool("exclude_info", cfg.Analysis.ExcludeInfo))

	reader, err := ingest.Open(cfg.Analysis.InputPath, cfg.Analysis.ChunkSize, ingest.Columns{
		Sensor:   cfg.Analysis.SensorColumn,
		Severity: cfg.Analysis.SeverityColumn,
		Status:   cfg.Analysis.StatusColumn,
	}, logger)
	if err != nil {
		return err
	}
	defer reader.Close()

	agg := analyze.New(cfg.Analysis.ExcludeInfo)

	chunkNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("analysis interrupted: %w", err)
		}

		batch, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error processing input: %w", err)
		}

		chunkNum++
		agg.Accumulate(batch)

		logger.Debug("Processed chunk.", zap.Int("chunk", chunkNum), zap.Int("rows", len(batch)))
		if chunkNum%10 == 0 {
			logger.Info("Processing progress.",
				zap.Int("chunks", chunkNum),
				zap.Int64("rows_total", reader.RowsRead()))
		}
	}

	snap := agg.Snapshot()
	logger.Info("Finished processing input.",
		zap.Int64("rows_read", reader.RowsRead()),
		zap.Int64("included", snap.Included),
		zap.Int64("excluded", snap.Excluded),
		zap.Int64("skipped", snap.Skipped))

	if snap.Included == 0 {
		return fmt.Errorf("no valid data found in %s (%d rows skipped, %d excluded)",
			cfg.Analysis.InputPath, snap.Skipped, snap.Excluded)
	}

	if err := report.WriteSummary(stdout, snap); err != nil {
		return err
	}

	chart := report.BuildSankey(snap, cfg.Render)
	artifact, err := report.Render(ctx, chart, cfg.Analysis.Output, cfg.Render, logger)
	if err != nil {
		return fmt.Errorf("failed to write diagram artifact: %w", err)
	}
	if artifact.Fallback {
		fmt.Fprintf(stdout, "\nRaster export unavailable; saved interactive diagram to %s\n", artifact.Path)
	} else {
		fmt.Fprintf(stdout, "\nSaved Sankey diagram to %s\n", artifact.Path)
	}

	logger.Info("Analysis complete.", zap.String("artifact", artifact.Path))
	return nil
}

// Execute runs the root command. It accepts a context passed from main.go so
// Ctrl-C interrupts the chunk loop between batches.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); ctx.Err() == nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.Flags().Int("chunk-size", 100000, "Number of rows to process at a time")
	rootCmd.Flags().String("output", "sankey_diagram.png", "Output path for the Sankey diagram")
	rootCmd.Flags().Bool("exclude-info", false, "Exclude INFO severity rows from the analysis")

	_ = viper.BindPFlag("analysis.chunk_size", rootCmd.Flags().Lookup("chunk-size"))
	_ = viper.BindPFlag("analysis.output", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("analysis.exclude_info", rootCmd.Flags().Lookup("exclude-info"))
}

// initializeConfig reads in the config file and TAEGIS_* environment
// variables if set.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TAEGIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and flags cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
