package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// MockStore wraps a MemoryStore so tests can inject failures into single
// write steps and observe the events appended by committed transactions.
type MockStore struct {
	*store.MemoryStore

	mu sync.Mutex

	// Errors returned by the matching Tx method when set
	AdjustProductErr error
	PostLedgerErr    error
	AppendEventErr   error

	// AdjustProductErrAfter lets that many AdjustProduct calls succeed
	// before AdjustProductErr is returned.
	AdjustProductErrAfter int

	// TxCalls counts WithinTx invocations
	TxCalls int
}

// NewMockStore creates a MockStore over an empty MemoryStore
func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: store.NewMemoryStore()}
}

func (m *MockStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	m.TxCalls++
	m.mu.Unlock()

	return m.MemoryStore.WithinTx(ctx, func(tx store.Tx) error {
		return fn(&mockTx{Tx: tx, m: m})
	})
}

// EventTypes lists the type of every committed event, oldest first.
func (m *MockStore) EventTypes() []string {
	var types []string
	for _, e := range m.Events() {
		types = append(types, e.EventType)
	}
	return types
}

type mockTx struct {
	store.Tx
	m        *MockStore
	adjusted int
}

func (t *mockTx) AdjustProduct(ctx context.Context, productID string, adj product.Adjustment, at time.Time) error {
	t.m.mu.Lock()
	err, after := t.m.AdjustProductErr, t.m.AdjustProductErrAfter
	t.m.mu.Unlock()

	if err != nil && t.adjusted >= after {
		return err
	}
	t.adjusted++
	return t.Tx.AdjustProduct(ctx, productID, adj, at)
}

func (t *mockTx) PostLedger(ctx context.Context, tx ledger.Transaction) error {
	t.m.mu.Lock()
	err := t.m.PostLedgerErr
	t.m.mu.Unlock()

	if err != nil {
		return err
	}
	return t.Tx.PostLedger(ctx, tx)
}

func (t *mockTx) AppendEvent(ctx context.Context, e store.Event) error {
	t.m.mu.Lock()
	err := t.m.AppendEventErr
	t.m.mu.Unlock()

	if err != nil {
		return err
	}
	return t.Tx.AppendEvent(ctx, e)
}
