package mocks

import (
	"context"
	"sync"

	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// MockPublisher records published events
type MockPublisher struct {
	mu sync.Mutex

	Published []store.Event
	Calls     int

	// PublishErr is returned, and nothing recorded, while set
	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(_ context.Context, events []store.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls++
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.Published = append(p.Published, events...)
	return nil
}

func (p *MockPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PublishErr = err
}

func (p *MockPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, len(p.Published))
	for i, e := range p.Published {
		types[i] = e.EventType
	}
	return types
}
