package vectorstore

import (
	"context"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/model"
)

// Manager is a Store that forwards to the active backend and can switch
// backends at runtime. Operations in flight keep the backend they started
// with; the replaced backend is closed once they have finished.
type Manager struct {
	opts     Options
	defaults map[string]interface{}

	mu     sync.RWMutex
	active Store
}

// NewManager builds the initial backend. defaults holds the boot-time
// parameters per provider name and is consulted when Configure gets nil args.
func NewManager(provider string, defaults map[string]interface{}, opts Options) (*Manager, error) {
	m := &Manager{opts: opts.normalize(), defaults: map[string]interface{}{}}
	for name, args := range defaults {
		m.defaults[normalizeName(name)] = args
	}
	store, err := New(provider, m.defaults[normalizeName(provider)], m.opts)
	if err != nil {
		return nil, err
	}
	m.active = store
	return m, nil
}

// Configure replaces the active backend. The current backend stays in place
// when the new one cannot be built.
func (m *Manager) Configure(ctx context.Context, provider string, args interface{}) error {
	if args == nil {
		args = m.defaults[normalizeName(provider)]
	}
	next, err := New(provider, args, m.opts)
	if err != nil {
		return err
	}
	m.mu.Lock()
	prev := m.active
	m.active = next
	m.mu.Unlock()

	logutil.GetLogger(ctx).Info("vector store provider switched",
		zap.String("from", prev.Provider()), zap.String("to", next.Provider()))
	if err := prev.Close(); err != nil {
		logutil.GetLogger(ctx).Warn("close previous vector store failed",
			zap.String("provider", prev.Provider()), zap.Error(err))
	}
	return nil
}

func (m *Manager) ActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Provider()
}

func (m *Manager) Provider() string {
	return m.ActiveProvider()
}

func (m *Manager) Insert(ctx context.Context, title, content string, chunkIndex int, embedding []float32) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Insert(ctx, title, content, chunkIndex, embedding)
}

func (m *Manager) Search(ctx context.Context, embedding []float32, limit int) ([]model.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Search(ctx, embedding, limit)
}

func (m *Manager) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.ListDocuments(ctx)
}

func (m *Manager) DeleteDocument(ctx context.Context, title string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.DeleteDocument(ctx, title)
}

func (m *Manager) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Count(ctx)
}

func (m *Manager) TestConnection(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.TestConnection(ctx)
}

// EnsureIndex rebuilds the active backend's index when it has one.
func (m *Manager) EnsureIndex(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if im, ok := m.active.(IndexMaintainer); ok {
		return im.EnsureIndex(ctx)
	}
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Close()
}
