package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig selects the surfaces to mount. Operator and Display may each be nil.
type RouterConfig struct {
	Operator       *OperatorHandler
	Display        *DisplayHandler
	SessionToken   string
	RequestTimeout time.Duration
	Log            *logrus.Entry
}

// checkoutBudget is how many request timeouts a checkout may take; its persist steps retry.
const checkoutBudget = 3

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Log))

	timeout := middleware.Timeout(cfg.RequestTimeout)

	r.With(timeout).Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Operator != nil {
			h := cfg.Operator
			r.With(timeout).Get("/products", h.ListProducts)

			r.Group(func(r chi.Router) {
				r.Use(SessionGate(cfg.SessionToken))

				r.With(middleware.Timeout(checkoutBudget*cfg.RequestTimeout)).Post("/checkout", h.Checkout)

				r.Group(func(r chi.Router) {
					r.Use(timeout)
					r.Get("/order", h.GetOrder)
					r.Post("/order/lines", h.AddLine)
					r.Delete("/order/lines/{product_id}", h.RemoveLine)
					r.Get("/transactions", h.ListTransactions)
					r.Get("/transactions/{id}", h.GetTransaction)
				})
			})
		}

		if cfg.Display != nil {
			r.With(timeout).Get("/display", cfg.Display.GetDisplay)
		}
	})

	return otelhttp.NewHandler(r, "possync")
}
