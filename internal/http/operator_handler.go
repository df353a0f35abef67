package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Shibarkan/cafe/internal/catalog"
	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Cart interface {
	AddLine(product domain.Product) []domain.CartLine
	RemoveLine(productID int64) []domain.CartLine
	Lines() []domain.CartLine
}

type Checkout interface {
	Checkout(ctx context.Context) (*domain.Transaction, error)
}

type History interface {
	Recent(ctx context.Context, limit int) ([]*domain.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// OperatorHandler serves the cashier terminal. Mutations are serialized so the terminal
// stays a single writer however many requests arrive at once.
type OperatorHandler struct {
	catalog  catalog.Catalog
	cart     Cart
	checkout Checkout
	history  History
	timeout  time.Duration
	now      func() time.Time

	mu sync.Mutex
}

func NewOperatorHandler(c catalog.Catalog, cart Cart, checkout Checkout, history History, timeout time.Duration) *OperatorHandler {
	return &OperatorHandler{
		catalog:  c,
		cart:     cart,
		checkout: checkout,
		history:  history,
		timeout:  timeout,
		now:      time.Now,
	}
}

type AddLineRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type OrderResponseDTO struct {
	Items []domain.CartLine `json:"items"`
	Total int64             `json:"total"`
}

func orderResponse(lines []domain.CartLine) OrderResponseDTO {
	return OrderResponseDTO{Items: domain.CloneLines(lines), Total: domain.Total(lines)}
}

func (h *OperatorHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter := catalog.Filter{
		Category: domain.Category(r.URL.Query().Get("category")),
		Search:   r.URL.Query().Get("q"),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_category", "category must be food, drink or snack")
		return
	}

	products, err := h.catalog.Products(ctx, filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *OperatorHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, orderResponse(h.cart.Lines()))
}

func (h *OperatorHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	product, err := h.catalog.Product(ctx, req.ProductID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	h.mu.Lock()
	lines := h.cart.AddLine(product)
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, orderResponse(lines))
}

func (h *OperatorHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	h.mu.Lock()
	lines := h.cart.RemoveLine(productID)
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, orderResponse(lines))
}

func (h *OperatorHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	// checkout retries with backoff, so it gets a longer budget than plain requests
	ctx, cancel := context.WithTimeout(r.Context(), checkoutBudget*h.timeout)
	defer cancel()

	h.mu.Lock()
	tx, err := h.checkout.Checkout(ctx)
	h.mu.Unlock()
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// ListTransactions accepts limit and range (all, 7days, 30days).
func (h *OperatorHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	var since time.Time
	switch r.URL.Query().Get("range") {
	case "", "all":
	case "7days":
		since = h.now().AddDate(0, 0, -7)
	case "30days":
		since = h.now().AddDate(0, 0, -30)
	default:
		respondError(w, http.StatusBadRequest, "invalid_range", "range must be all, 7days or 30days")
		return
	}

	txs, err := h.history.Recent(ctx, limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	out := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !since.IsZero() && tx.CreatedAt.Before(since) {
			continue
		}
		out = append(out, tx)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *OperatorHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}

	tx, err := h.history.Get(ctx, id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}
