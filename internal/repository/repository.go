// Пакет repository — хранилища предпочтений Acorn Dashboard.
// Реализации: PostgreSQL (pgx), BadgerDB, JSON-файл с атомарной записью, память.
// Ключи имеют вид "<namespace>:<field>", значения — строки.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Preference — сохранённое предпочтение.
type Preference struct {
	// Ключ "<namespace>:<field>"
	Key string `json:"key"`
	// Строковое представление значения
	Value string `json:"value"`
	// Время последнего обновления
	UpdatedAt time.Time `json:"updated_at"`
}

// PreferenceRepository — интерфейс хранилища предпочтений.
type PreferenceRepository interface {
	// Get возвращает предпочтение по ключу. Если не найдено — ErrNotFound.
	Get(ctx context.Context, key string) (*Preference, error)
	// Set создаёт или перезаписывает предпочтение.
	Set(ctx context.Context, key, value string) error
	// ListByPrefix возвращает предпочтения с ключами, начинающимися на prefix, по возрастанию ключа.
	ListByPrefix(ctx context.Context, prefix string) ([]Preference, error)
	// Delete удаляет предпочтение. Если не найдено — ErrNotFound.
	Delete(ctx context.Context, key string) error
}
