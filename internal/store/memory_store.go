package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/edaccess/coursecheck/internal/model"
)

// MemoryStore is an in-memory ScanStore and SettingsStore for tests and the
// one-shot CLI, where nothing needs to survive the process.
type MemoryStore struct {
	mu       sync.RWMutex
	scans    map[string]*model.ScanResult
	settings map[string]model.Settings
}

var (
	_ ScanStore     = (*MemoryStore)(nil)
	_ SettingsStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans:    make(map[string]*model.ScanResult),
		settings: make(map[string]model.Settings),
	}
}

func (m *MemoryStore) Put(_ context.Context, result *model.ScanResult) error {
	if result == nil || result.ScanID == "" {
		return fmt.Errorf("scan result must have a scan id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.scans[result.ScanID]; ok && existing.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrScanFinalized, result.ScanID)
	}
	cp := *result
	cp.Issues = append([]model.Issue(nil), result.Issues...)
	m.scans[result.ScanID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scanID string) (*model.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.scans[scanID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	cp := *result
	return &cp, nil
}

func (m *MemoryStore) ListByCourse(_ context.Context, courseID string) ([]*model.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ScanResult
	for _, result := range m.scans {
		if result.CourseID != courseID {
			continue
		}
		cp := *result
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ScanID < out[j].ScanID
	})
	return out, nil
}

func (m *MemoryStore) GetSettings(_ context.Context, userID string) (model.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[userID]; ok {
		return s, nil
	}
	return model.DefaultSettings(), nil
}

func (m *MemoryStore) PutSettings(_ context.Context, userID string, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[userID] = s
	return nil
}
