// preference_file.go — хранилище предпочтений в JSON-файле.
//
// Файл перезаписывается целиком при каждом изменении (атомарно: temp → rename
// через natefinch/atomic), чтобы сбой посреди записи не оставлял усечённый JSON.
//
// Формат файла:
//
//	{"version": 1, "preferences": {"list:test:pageSize": {"key": "...", "value": "50", "updated_at": "..."}}}
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// preferenceFileVersion — версия формата файла предпочтений.
const preferenceFileVersion = 1

// preferenceFileData — структура JSON-файла предпочтений.
type preferenceFileData struct {
	Version     int                   `json:"version"`
	Preferences map[string]Preference `json:"preferences"`
}

// FilePreferenceRepository — хранилище предпочтений в JSON-файле.
// Содержимое файла кэшируется в памяти; запись — при каждом Set/Delete.
type FilePreferenceRepository struct {
	path  string
	mu    sync.Mutex
	prefs map[string]Preference
	now   func() time.Time
}

// NewFilePreferenceRepository открывает (или создаёт при первой записи) файл предпочтений.
// Отсутствующий файл — пустое хранилище; повреждённый — ошибка.
func NewFilePreferenceRepository(path string) (*FilePreferenceRepository, error) {
	r := &FilePreferenceRepository{
		path:  path,
		prefs: make(map[string]Preference),
		now:   time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("ошибка чтения файла предпочтений %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}

	var fileData preferenceFileData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return nil, fmt.Errorf("ошибка десериализации файла предпочтений %s: %w", path, err)
	}
	if fileData.Version != preferenceFileVersion {
		return nil, fmt.Errorf("неподдерживаемая версия файла предпочтений: %d", fileData.Version)
	}
	for k, p := range fileData.Preferences {
		p.Key = k
		r.prefs[k] = p
	}
	return r, nil
}

// Path возвращает путь к файлу.
func (r *FilePreferenceRepository) Path() string {
	return r.path
}

// Get возвращает предпочтение по ключу.
func (r *FilePreferenceRepository) Get(_ context.Context, key string) (*Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prefs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Set создаёт или перезаписывает предпочтение и сохраняет файл.
// При ошибке записи состояние в памяти не меняется.
func (r *FilePreferenceRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.prefs[key]
	r.prefs[key] = Preference{Key: key, Value: value, UpdatedAt: r.now().UTC()}

	if err := r.flushLocked(); err != nil {
		if existed {
			r.prefs[key] = prev
		} else {
			delete(r.prefs, key)
		}
		return err
	}
	return nil
}

// ListByPrefix возвращает предпочтения по префиксу ключа.
func (r *FilePreferenceRepository) ListByPrefix(_ context.Context, prefix string) ([]Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return filterByPrefix(r.prefs, prefix), nil
}

// Delete удаляет предпочтение и сохраняет файл.
func (r *FilePreferenceRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.prefs[key]
	if !ok {
		return ErrNotFound
	}
	delete(r.prefs, key)

	if err := r.flushLocked(); err != nil {
		r.prefs[key] = prev
		return err
	}
	return nil
}

// flushLocked атомарно записывает текущее состояние в файл. Вызывается под mu.
func (r *FilePreferenceRepository) flushLocked() error {
	data, err := json.MarshalIndent(preferenceFileData{
		Version:     preferenceFileVersion,
		Preferences: r.prefs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации файла предпочтений: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("ошибка создания директории %s: %w", dir, err)
		}
	}

	if err := atomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("ошибка записи файла предпочтений %s: %w", r.path, err)
	}
	return nil
}
