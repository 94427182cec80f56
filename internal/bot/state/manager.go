package state

import (
	"context"
	"sync"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// State is the conversation step a user is in
type State string

// User states constants
const (
	None                 State = "none"
	AwaitingMealChoice   State = "awaiting_meal_choice"
	AwaitingBackdateDate State = "awaiting_backdate_date"
	AwaitingManualKcal   State = "awaiting_manual_kcal"
	AwaitingEditWeight   State = "awaiting_edit_weight"
	AwaitingEditKcal     State = "awaiting_edit_kcal"
	AwaitingMealSelect   State = "awaiting_meal_selection"
	AwaitingItemSelect   State = "awaiting_item_selection"
	AwaitingFieldSelect  State = "awaiting_field_selection"
)

// Context is everything remembered about a user's conversation between
// updates
type Context struct {
	State State `json:"state"`
	// Text is a submission held until the user picks what to do with it
	Text   string `json:"text,omitempty"`
	MealID string `json:"meal_id,omitempty"`

	Pending     []domain.PendingProduct `json:"pending,omitempty"`
	PendingKcal *domain.PendingKcal     `json:"pending_kcal,omitempty"`

	EntryID       uint   `json:"entry_id,omitempty"`
	DeleteProduct string `json:"delete_product,omitempty"`
}

// IsIdle reports whether no operation is in progress
func (c *Context) IsIdle() bool {
	return c.State == "" || c.State == None
}

// Store keeps conversation contexts by telegram user id
type Store interface {
	Get(ctx context.Context, userID int64) (*Context, error)
	Set(ctx context.Context, userID int64, c *Context) error
	Clear(ctx context.Context, userID int64) error
}

// Manager keeps contexts in process memory
type Manager struct {
	contexts map[int64]Context
	mu       sync.RWMutex
}

// NewManager creates a new state manager
func NewManager() *Manager {
	return &Manager{contexts: make(map[int64]Context)}
}

// Get returns a copy of the user's context; an unknown user is idle
func (m *Manager) Get(_ context.Context, userID int64) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, exists := m.contexts[userID]
	if !exists {
		return &Context{State: None}, nil
	}
	c.Pending = append([]domain.PendingProduct(nil), c.Pending...)
	if c.PendingKcal != nil {
		pk := *c.PendingKcal
		c.PendingKcal = &pk
	}
	return &c, nil
}

// Set replaces the user's context
func (m *Manager) Set(_ context.Context, userID int64, c *Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[userID] = *c
	return nil
}

// Clear forgets the user's context
func (m *Manager) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, userID)
	return nil
}
