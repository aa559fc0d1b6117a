package provider

import (
	"context"
	"fmt"
	"sync"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
)

// MockAdapter is an in-memory polling adapter for tests and local smoke runs.
// Queue SMS text with PushMessage; CheckCode drains it per rental ref.
type MockAdapter struct {
	name string

	mu       sync.Mutex
	nextRef  int
	messages map[string][]string
	failNext error
	burned   map[string]bool
}

func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:     name,
		messages: make(map[string][]string),
		burned:   make(map[string]bool),
	}
}

func (m *MockAdapter) Name() string { return m.name }

// FailNext makes the next adapter call return err once.
func (m *MockAdapter) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// PushMessage queues raw SMS text for a rental ref.
func (m *MockAdapter) PushMessage(ref, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[ref] = append(m.messages[ref], text)
}

// Burn makes future Cancel calls for ref report the number burned.
func (m *MockAdapter) Burn(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.burned[ref] = true
}

func (m *MockAdapter) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MockAdapter) RequestNumber(_ context.Context, _ catalogdomain.Offering, phone string) (*Number, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	m.nextRef++
	return &Number{Ref: fmt.Sprintf("mock-%d", m.nextRef), Phone: phone}, nil
}

func (m *MockAdapter) CheckCode(_ context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	queued := m.messages[ref]
	if len(queued) == 0 {
		return "", nil
	}
	text := queued[0]
	m.messages[ref] = queued[1:]
	return text, nil
}

func (m *MockAdapter) Cancel(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if m.burned[ref] {
		return ErrNumberBurned
	}
	return nil
}
