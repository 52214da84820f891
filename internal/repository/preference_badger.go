// preference_badger.go — хранилище предпочтений во встроенной BadgerDB.
// Ключи хранятся с префиксом "pref/", значения — JSON {value, updated_at}.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// badgerKeyPrefix — пространство ключей предпочтений в BadgerDB.
const badgerKeyPrefix = "pref/"

// badgerValue — сериализованное значение предпочтения.
type badgerValue struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// badgerLogger — адаптер логгера BadgerDB к slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerPreferenceRepository — хранилище предпочтений в BadgerDB.
type BadgerPreferenceRepository struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadgerPreferenceRepository открывает BadgerDB в директории dir.
// Пустой dir — база в памяти (для тестов). logger nil отключает логи BadgerDB.
func OpenBadgerPreferenceRepository(dir string, logger *slog.Logger) (*BadgerPreferenceRepository, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("ошибка создания директории BadgerDB %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger.With(slog.String("component", "badger"))})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия BadgerDB: %w", err)
	}
	return &BadgerPreferenceRepository{db: db, now: time.Now}, nil
}

// Close закрывает базу.
func (r *BadgerPreferenceRepository) Close() error {
	return r.db.Close()
}

// CheckReady проверяет, что база открыта.
// Реализует интерфейс handlers.ReadinessChecker.
func (r *BadgerPreferenceRepository) CheckReady() (status string, message string) {
	if r.db.IsClosed() {
		return "fail", "BadgerDB закрыта"
	}
	return "ok", "BadgerDB открыта"
}

// Get возвращает предпочтение по ключу.
func (r *BadgerPreferenceRepository) Get(_ context.Context, key string) (*Preference, error) {
	var p *Preference
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeBadgerValue(key, val)
			p = decoded
			return err
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения предпочтения %s: %w", key, err)
	}
	return p, nil
}

// Set создаёт или перезаписывает предпочтение.
func (r *BadgerPreferenceRepository) Set(_ context.Context, key, value string) error {
	data, err := json.Marshal(badgerValue{Value: value, UpdatedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("ошибка сериализации предпочтения %s: %w", key, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения предпочтения %s: %w", key, err)
	}
	return nil
}

// ListByPrefix возвращает предпочтения по префиксу ключа (в порядке ключей).
func (r *BadgerPreferenceRepository) ListByPrefix(_ context.Context, prefix string) ([]Preference, error) {
	var prefs []Preference
	seek := []byte(badgerKeyPrefix + prefix)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(badgerKeyPrefix):])
			err := item.Value(func(val []byte) error {
				p, err := decodeBadgerValue(key, val)
				if err != nil {
					return err
				}
				prefs = append(prefs, *p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения предпочтений по префиксу %q: %w", prefix, err)
	}
	return prefs, nil
}

// Delete удаляет предпочтение.
func (r *BadgerPreferenceRepository) Delete(_ context.Context, key string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		k := []byte(badgerKeyPrefix + key)
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления предпочтения %s: %w", key, err)
	}
	return nil
}

func decodeBadgerValue(key string, val []byte) (*Preference, error) {
	var v badgerValue
	if err := json.Unmarshal(val, &v); err != nil {
		return nil, fmt.Errorf("повреждённое значение предпочтения %s: %w", key, err)
	}
	return &Preference{Key: key, Value: v.Value, UpdatedAt: v.UpdatedAt}, nil
}
