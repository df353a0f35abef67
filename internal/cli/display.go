package cli

import (
	cafehttp "github.com/Shibarkan/cafe/internal/http"
	"github.com/Shibarkan/cafe/internal/observer"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/spf13/cobra"
)

// NewDisplayCommand runs a customer display on its own device. It never writes the order.
func NewDisplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "display",
		Short:         "Run the customer display",
		Long:          "Follows the shared order through the remote channel and serves it read-only.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisplay(cmd, rootOpts)
		},
	}
}

func runDisplay(cmd *cobra.Command, rootOpts *RootOptions) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	term, err := openTerminal(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer term.Close()

	view := cafehttp.NewDisplayView(cfg.Display.ConfirmationWindow)
	sub := observer.NewSubscriber(term.device.NewTab("display"), term.remote, view, logger.Component(log, "observer"))
	if err := sub.Activate(ctx); err != nil {
		return err
	}
	defer sub.Close()

	router := cafehttp.NewRouter(cafehttp.RouterConfig{
		Display:        cafehttp.NewDisplayHandler(view),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Log:            logger.Component(log, "http"),
	})
	return serve(ctx, cfg, router, log)
}
