package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryPreferenceRepository — хранилище предпочтений в памяти процесса.
// Используется в тестах и при AD_PREFERENCES_BACKEND=memory.
type MemoryPreferenceRepository struct {
	mu    sync.RWMutex
	prefs map[string]Preference
	now   func() time.Time
}

// NewMemoryPreferenceRepository создаёт пустое хранилище в памяти.
func NewMemoryPreferenceRepository() *MemoryPreferenceRepository {
	return &MemoryPreferenceRepository{
		prefs: make(map[string]Preference),
		now:   time.Now,
	}
}

// Get возвращает предпочтение по ключу.
func (r *MemoryPreferenceRepository) Get(_ context.Context, key string) (*Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prefs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Set создаёт или перезаписывает предпочтение.
func (r *MemoryPreferenceRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs[key] = Preference{Key: key, Value: value, UpdatedAt: r.now().UTC()}
	return nil
}

// ListByPrefix возвращает предпочтения по префиксу ключа.
func (r *MemoryPreferenceRepository) ListByPrefix(_ context.Context, prefix string) ([]Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return filterByPrefix(r.prefs, prefix), nil
}

// Delete удаляет предпочтение.
func (r *MemoryPreferenceRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prefs[key]; !ok {
		return ErrNotFound
	}
	delete(r.prefs, key)
	return nil
}

// filterByPrefix отбирает записи по префиксу и сортирует по ключу.
func filterByPrefix(prefs map[string]Preference, prefix string) []Preference {
	var out []Preference
	for k, p := range prefs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
