package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// postgresPreferenceRepo — реализация PreferenceRepository на таблице preferences.
type postgresPreferenceRepo struct {
	db DBTX
}

// NewPostgresPreferenceRepository создаёт репозиторий предпочтений в PostgreSQL.
func NewPostgresPreferenceRepository(db DBTX) PreferenceRepository {
	return &postgresPreferenceRepo{db: db}
}

// Get возвращает предпочтение по ключу.
func (r *postgresPreferenceRepo) Get(ctx context.Context, key string) (*Preference, error) {
	query := `
		SELECT key, value, updated_at
		FROM preferences
		WHERE key = $1`

	p := &Preference{}
	err := r.db.QueryRow(ctx, query, key).Scan(&p.Key, &p.Value, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения preferences[%s]: %w", key, err)
	}
	return p, nil
}

// Set создаёт или обновляет предпочтение (INSERT ... ON CONFLICT DO UPDATE).
func (r *postgresPreferenceRepo) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("ошибка сохранения preferences[%s]: %w", key, err)
	}
	return nil
}

// ListByPrefix возвращает предпочтения с ключами, начинающимися на prefix.
// Например, prefix="list:properties:" вернёт все поля представления list:properties.
func (r *postgresPreferenceRepo) ListByPrefix(ctx context.Context, prefix string) ([]Preference, error) {
	query := `
		SELECT key, value, updated_at
		FROM preferences
		WHERE key LIKE $1 ESCAPE '\'
		ORDER BY key`

	rows, err := r.db.Query(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("ошибка получения preferences по префиксу %q: %w", prefix, err)
	}
	defer rows.Close()

	var prefs []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования preferences: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// Delete удаляет предпочтение по ключу.
func (r *postgresPreferenceRepo) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM preferences WHERE key = $1`
	tag, err := r.db.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления preferences[%s]: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// escapeLike экранирует спецсимволы LIKE (%, _, \) в префиксе.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
