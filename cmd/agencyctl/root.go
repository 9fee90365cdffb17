package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/bootstrap"
	"agency_portal_echo/internal/config"
	"agency_portal_echo/internal/logging"
)

// env is filled by the root command before any subcommand runs.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func (e *env) database() (*gorm.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := bootstrap.Database(e.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	e.db = db
	return db, nil
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var verbose bool

	root := &cobra.Command{
		Use:           "agencyctl",
		Short:         "Operator commands for the agency portal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.cfg = config.Load()
			level := e.cfg.LogLevel
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(level, e.cfg.IsProduction())
			if err != nil {
				return err
			}
			e.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCmd(e),
		newSweepCmd(e),
		newScheduleCmd(e),
		newWASendCmd(e),
	)
	return root
}
