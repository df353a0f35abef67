package cart

import (
	"github.com/Shibarkan/cafe/internal/domain"
)

// MockLocalStore implements LocalStore for testing
type MockLocalStore struct {
	Saved   []domain.SharedOrderState
	Loaded  *domain.SharedOrderState
	SaveErr error
	LoadErr error
	// Events records the order of local saves and remote schedules
	Events *[]string
}

func (m *MockLocalStore) SaveOrder(state *domain.SharedOrderState) error {
	m.Saved = append(m.Saved, domain.NewSharedOrder(state.Lines, state.UpdatedAt))
	if m.Events != nil {
		*m.Events = append(*m.Events, "save")
	}
	return m.SaveErr
}

func (m *MockLocalStore) LoadOrder() (*domain.SharedOrderState, error) {
	return m.Loaded, m.LoadErr
}

// MockScheduler implements Scheduler for testing
type MockScheduler struct {
	Scheduled []domain.SharedOrderState
	Events    *[]string
}

func (m *MockScheduler) Schedule(state domain.SharedOrderState) {
	m.Scheduled = append(m.Scheduled, state)
	if m.Events != nil {
		*m.Events = append(*m.Events, "schedule")
	}
}
