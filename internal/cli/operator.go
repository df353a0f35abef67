package cli

import (
	"github.com/Shibarkan/cafe/internal/cart"
	"github.com/Shibarkan/cafe/internal/catalog"
	"github.com/Shibarkan/cafe/internal/checkout"
	"github.com/Shibarkan/cafe/internal/debounce"
	cafehttp "github.com/Shibarkan/cafe/internal/http"
	"github.com/Shibarkan/cafe/internal/observer"
	"github.com/Shibarkan/cafe/internal/publisher"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/spf13/cobra"
)

type OperatorOptions struct {
	*RootOptions
	WithDisplay bool
}

// NewOperatorCommand runs the cashier terminal: the only writer of the shared order.
func NewOperatorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OperatorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "operator",
		Short:         "Run the cashier terminal",
		Long:          "Serves the catalog, the active order, checkout and transaction history over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperator(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.WithDisplay, "with-display", false, "also serve the customer display from a second tab on this device")

	return cmd
}

func runOperator(cmd *cobra.Command, opts *OperatorOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	term, err := openTerminal(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer term.Close()

	tab := term.device.NewTab("operator")

	writer := debounce.NewWriter(term.remote, cfg.Channel.DebounceDelay, logger.Component(log, "debounce"))
	defer writer.Stop()

	engine := cart.NewEngine(tab, writer, logger.Component(log, "cart"))
	if err := engine.Restore(); err != nil {
		log.WithError(err).Warn("failed to restore order, starting empty")
	}

	deps := checkout.Dependencies{
		Store:  term.repo,
		Log:    term.device,
		Cart:   engine,
		Flag:   tab,
		Writer: writer,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := publisher.NewPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer pub.Close()
		deps.Publisher = pub
	}
	coordinator := checkout.NewCoordinator(deps, logger.Component(log, "checkout"))
	history := checkout.NewHistory(term.repo, term.device, logger.Component(log, "history"))

	routes := cafehttp.RouterConfig{
		Operator:       cafehttp.NewOperatorHandler(catalog.Default(), engine, coordinator, history, cfg.HTTP.RequestTimeout),
		SessionToken:   cfg.HTTP.SessionToken,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Log:            logger.Component(log, "http"),
	}

	if opts.WithDisplay {
		view := cafehttp.NewDisplayView(cfg.Display.ConfirmationWindow)
		sub := observer.NewSubscriber(term.device.NewTab("display"), term.remote, view, logger.Component(log, "observer"))
		if err := sub.Activate(ctx); err != nil {
			return err
		}
		defer sub.Close()
		routes.Display = cafehttp.NewDisplayHandler(view)
	}

	return serve(ctx, cfg, cafehttp.NewRouter(routes), log)
}
