// Package cli is the possync command line: one process per terminal role.
package cli

import (
	"fmt"

	"github.com/Shibarkan/cafe/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

var validFormats = []string{"json", "text"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "possync",
		Short: "possync - shared order terminal for the cafe",
		Long:  "Runs the cashier terminal and the customer display against one shared active order.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogFormat != "" && !isValidFormat(opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides config")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (json|text), overrides config")

	cmd.AddCommand(NewOperatorCommand(opts))
	cmd.AddCommand(NewDisplayCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// loadConfig reads the config file and lets the global flags win over it.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	return cfg, nil
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
