// preferences.go — сервис предпочтений представлений.
// Ключи хранятся как "<namespace>:<field>", значения — строки.
//
// Два уровня API:
//   - Get/Set — для хранилища фильтров: ошибки хранилища поглощаются и логируются,
//     состояние в памяти остаётся авторитетным;
//   - Lookup/Store/List/Clear — для HTTP API: ошибки возвращаются вызывающему.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amitch35/AcornArranger-next-sub000/internal/repository"
)

// Prometheus-метрики предпочтений.
var preferenceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ad_preference_errors_total",
	Help: "Количество поглощённых ошибок хранилища предпочтений.",
}, []string{"op"})

// defaultPreferenceTimeout — таймаут операции с хранилищем по умолчанию.
const defaultPreferenceTimeout = 2 * time.Second

// PreferenceStore — минимальный контракт предпочтений для QueryStore.
// Реализация не должна возвращать ошибок: сбой хранилища равен отсутствию значения.
type PreferenceStore interface {
	Get(ctx context.Context, namespace, field string) (string, bool)
	Set(ctx context.Context, namespace, field, value string)
}

// PreferenceKey строит ключ хранилища "<namespace>:<field>".
func PreferenceKey(namespace, field string) string {
	return namespace + ":" + field
}

// Preferences — сервис предпочтений поверх PreferenceRepository.
type Preferences struct {
	repo    repository.PreferenceRepository
	timeout time.Duration
	logger  *slog.Logger
}

// NewPreferences создаёт сервис предпочтений.
// timeout ограничивает каждую операцию с хранилищем (0 — значение по умолчанию).
func NewPreferences(
	repo repository.PreferenceRepository,
	timeout time.Duration,
	logger *slog.Logger,
) *Preferences {
	if timeout <= 0 {
		timeout = defaultPreferenceTimeout
	}
	return &Preferences{
		repo:    repo,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "preferences")),
	}
}

// Get возвращает значение или false. Ошибки хранилища поглощаются.
func (p *Preferences) Get(ctx context.Context, namespace, field string) (string, bool) {
	value, err := p.Lookup(ctx, namespace, field)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			preferenceErrorsTotal.WithLabelValues("get").Inc()
			p.logger.Warn("Не удалось прочитать предпочтение",
				slog.String("key", PreferenceKey(namespace, field)),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	return value, true
}

// Set сохраняет значение. Ошибки хранилища поглощаются, повторов нет.
func (p *Preferences) Set(ctx context.Context, namespace, field, value string) {
	if err := p.Store(ctx, namespace, field, value); err != nil {
		preferenceErrorsTotal.WithLabelValues("set").Inc()
		p.logger.Warn("Не удалось сохранить предпочтение",
			slog.String("key", PreferenceKey(namespace, field)),
			slog.String("error", err.Error()),
		)
	}
}

// Lookup возвращает значение предпочтения.
// Возвращает ErrNotFound если предпочтение не существует.
func (p *Preferences) Lookup(ctx context.Context, namespace, field string) (string, error) {
	if err := validateKey(namespace, field); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pref, err := p.repo.Get(ctx, PreferenceKey(namespace, field))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения предпочтения %q: %w", PreferenceKey(namespace, field), err)
	}
	return pref.Value, nil
}

// Store сохраняет значение предпочтения.
func (p *Preferences) Store(ctx context.Context, namespace, field, value string) error {
	if err := validateKey(namespace, field); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := PreferenceKey(namespace, field)
	if err := p.repo.Set(ctx, key, value); err != nil {
		return fmt.Errorf("ошибка сохранения предпочтения %q: %w", key, err)
	}

	p.logger.Debug("Предпочтение сохранено", slog.String("key", key))
	return nil
}

// List возвращает все предпочтения пространства имён: поле → запись.
func (p *Preferences) List(ctx context.Context, namespace string) (map[string]repository.Preference, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: пустое пространство имён", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prefix := namespace + ":"
	prefs, err := p.repo.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения предпочтений %q: %w", namespace, err)
	}

	out := make(map[string]repository.Preference, len(prefs))
	for _, pref := range prefs {
		field := strings.TrimPrefix(pref.Key, prefix)
		// Ключи вложенных пространств (ns:sub:field) не относятся к ns
		if strings.Contains(field, ":") {
			continue
		}
		out[field] = pref
	}
	return out, nil
}

// Clear явно удаляет предпочтение.
// Возвращает ErrNotFound если предпочтение не существует.
func (p *Preferences) Clear(ctx context.Context, namespace, field string) error {
	if err := validateKey(namespace, field); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := PreferenceKey(namespace, field)
	if err := p.repo.Delete(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления предпочтения %q: %w", key, err)
	}

	p.logger.Info("Предпочтение удалено", slog.String("key", key))
	return nil
}

// validateKey проверяет namespace и field.
// Namespace может содержать ':', field — нет.
func validateKey(namespace, field string) error {
	if namespace == "" {
		return fmt.Errorf("%w: пустое пространство имён", ErrValidation)
	}
	if field == "" {
		return fmt.Errorf("%w: пустое имя поля", ErrValidation)
	}
	if strings.Contains(field, ":") {
		return fmt.Errorf("%w: имя поля %q содержит ':'", ErrValidation, field)
	}
	return nil
}
