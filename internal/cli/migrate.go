package cli

import (
	"fmt"

	"github.com/Shibarkan/cafe/internal/localstore"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/spf13/cobra"
)

type MigrateOptions struct {
	*RootOptions
	LocalOnly bool
}

// NewMigrateCommand applies the device and remote schemas without starting a terminal.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.LocalOnly, "local-only", false, "only migrate the device store")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	device, err := localstore.Open(cfg.Device.DBPath)
	if err != nil {
		return err
	}
	defer device.Close()
	if err := device.RunMigrations(cfg.Device.MigrationsDir); err != nil {
		return err
	}
	log.WithField("db_path", cfg.Device.DBPath).Info("device store migrated")

	if !opts.LocalOnly {
		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer repo.Close()
		log.WithField("dbname", cfg.Postgres.DBName).Info("remote store migrated")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
