// Package cart owns the in-memory shared order of the operator terminal.
package cart

import (
	"sync"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/sirupsen/logrus"
)

// LocalStore is the device-local mirror written before every remote write.
type LocalStore interface {
	SaveOrder(state *domain.SharedOrderState) error
	LoadOrder() (*domain.SharedOrderState, error)
}

type Scheduler interface {
	Schedule(state domain.SharedOrderState)
}

type Engine struct {
	local     LocalStore
	scheduler Scheduler
	log       *logrus.Entry
	now       func() time.Time

	mu    sync.Mutex
	lines []domain.CartLine
}

func NewEngine(local LocalStore, scheduler Scheduler, log *logrus.Entry) *Engine {
	return &Engine{
		local:     local,
		scheduler: scheduler,
		log:       log,
		now:       time.Now,
		lines:     []domain.CartLine{},
	}
}

// AddLine increments the line for product, appending a new line with quantity 1 if there is none.
func (e *Engine) AddLine(product domain.Product) []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()

	found := false
	for i := range e.lines {
		if e.lines[i].ProductID == product.ID {
			e.lines[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		e.lines = append(e.lines, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  1,
			Category:  product.Category,
		})
	}

	e.commit()
	return domain.CloneLines(e.lines)
}

// RemoveLine decrements the line for productID and drops it at zero. Removing a product
// that is not in the cart changes nothing and writes nothing.
func (e *Engine) RemoveLine(productID int64) []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i := range e.lines {
		if e.lines[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.CloneLines(e.lines)
	}

	if e.lines[idx].Quantity > 1 {
		e.lines[idx].Quantity--
	} else {
		e.lines = append(e.lines[:idx], e.lines[idx+1:]...)
	}

	e.commit()
	return domain.CloneLines(e.lines)
}

func (e *Engine) Total() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Total(e.lines)
}

func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneLines(e.lines)
}

func (e *Engine) Snapshot() domain.SharedOrderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.NewSharedOrder(e.lines, e.now().UTC())
}

// Restore replaces the in-memory lines with the device's last saved order.
func (e *Engine) Restore() error {
	state, err := e.local.LoadOrder()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = domain.CloneLines(state.Lines)
	return nil
}

// Reset empties the cart and saves the empty order locally. It schedules no remote write;
// the caller owns the remote reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lines = []domain.CartLine{}
	state := domain.NewSharedOrder(e.lines, e.now().UTC())
	if err := e.local.SaveOrder(&state); err != nil {
		e.log.WithError(err).Warn("failed to save reset order locally")
	}
}

// commit must be called with e.mu held.
func (e *Engine) commit() {
	state := domain.NewSharedOrder(e.lines, e.now().UTC())
	if err := e.local.SaveOrder(&state); err != nil {
		e.log.WithError(err).Warn("failed to save order locally, continuing with in-memory state")
	}
	e.scheduler.Schedule(state)
}
