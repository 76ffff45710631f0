package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/logger"
	"github.com/berthwatch/backend/service"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "berthwatch",
	Short:         "RoRo berthing schedule service",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Print the RoRo vessels of a schedule PDF as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		records, stats, err := service.NewPipeline(cfg, nil).Run(cmd.Context(), data)
		if err != nil {
			return err
		}
		if records == nil {
			records = []model.VesselRecord{}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return err
		}
		cmd.PrintErrf("%d of %d rows accepted\n", stats.Accepted, stats.Rows)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing file named with --config is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// stdout carries extract output, so logs go to stderr
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	slog.Info("configuration loaded", "store", cfg.Store.Driver, "source", cfg.Source.PDFURL)
	return cfg, nil
}
