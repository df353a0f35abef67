package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
)

// DefaultConfirmationWindow is how long the display shows "payment succeeded".
const DefaultConfirmationWindow = 3 * time.Second

// DisplayView is the customer-facing rendering target of an observer. It keeps the last
// rendered order and when payment was last confirmed.
type DisplayView struct {
	confirmFor time.Duration
	now        func() time.Time

	mu          sync.Mutex
	state       domain.SharedOrderState
	renders     int
	confirmedAt time.Time
}

func NewDisplayView(confirmFor time.Duration) *DisplayView {
	if confirmFor <= 0 {
		confirmFor = DefaultConfirmationWindow
	}
	return &DisplayView{
		confirmFor: confirmFor,
		now:        time.Now,
		state:      domain.NewSharedOrder(nil, time.Time{}),
	}
}

func (v *DisplayView) Render(state domain.SharedOrderState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = domain.NewSharedOrder(state.Lines, state.UpdatedAt)
	v.renders++
}

func (v *DisplayView) ConfirmPayment() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmedAt = v.now()
}

type DisplayResponseDTO struct {
	Items            []domain.CartLine `json:"items"`
	Total            int64             `json:"total"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
	PaymentConfirmed bool              `json:"payment_confirmed"`
	Renders          int               `json:"renders"`
}

func (v *DisplayView) Snapshot() DisplayResponseDTO {
	v.mu.Lock()
	defer v.mu.Unlock()

	resp := DisplayResponseDTO{
		Items:            domain.CloneLines(v.state.Lines),
		Total:            v.state.Total(),
		PaymentConfirmed: !v.confirmedAt.IsZero() && v.now().Sub(v.confirmedAt) < v.confirmFor,
		Renders:          v.renders,
	}
	if !v.state.UpdatedAt.IsZero() {
		at := v.state.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

type DisplayHandler struct {
	view *DisplayView
}

func NewDisplayHandler(view *DisplayView) *DisplayHandler {
	return &DisplayHandler{view: view}
}

func (h *DisplayHandler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.view.Snapshot())
}
