// store.go — хранилище состояния фильтров одного представления (QueryStore).
//
// Состояние всегда провалидировано по схеме. Каждое изменение пересчитывает
// каноническую query string; подписчики уведомляются только когда строка
// действительно меняется. Изменение pageSize сохраняется в предпочтения.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/filter"
)

// QueryListener — обработчик изменения канонической query string.
type QueryListener func(query string)

// StoreOptions — параметры создания QueryStore.
type StoreOptions struct {
	// Namespace — пространство имён предпочтений (пусто — без сохранения)
	Namespace string
	// Initial — явные начальные фильтры (приоритетнее сохранённых предпочтений)
	Initial filter.Partial
	// Preferences — хранилище предпочтений (nil — без сохранения)
	Preferences PreferenceStore
}

// QueryStore — состояние фильтров представления.
// Методы безопасны для конкурентного вызова. Уведомления доставляются
// последовательно в порядке изменений; обработчик не должен синхронно
// изменять это же хранилище.
type QueryStore struct {
	schema    *filter.Schema
	namespace string
	prefs     PreferenceStore
	logger    *slog.Logger

	mu        sync.Mutex
	state     filter.State
	query     string
	listeners []storeListener
	nextID    int

	// notifyMu упорядочивает доставку уведомлений между изменениями.
	notifyMu sync.Mutex
}

type storeListener struct {
	id int
	fn QueryListener
}

// NewQueryStore создаёт хранилище для схемы.
// Начальное состояние: schema defaults ← сохранённый pageSize ← opts.Initial.
func NewQueryStore(schema *filter.Schema, opts StoreOptions, logger *slog.Logger) *QueryStore {
	s := &QueryStore{
		schema:    schema,
		namespace: opts.Namespace,
		prefs:     opts.Preferences,
		logger: logger.With(
			slog.String("component", "query_store"),
			slog.String("entity", schema.Entity()),
		),
	}

	seed := filter.Partial{}
	if s.persistent() {
		if raw, ok := s.prefs.Get(context.Background(), s.namespace, filter.FieldPageSize); ok {
			if n, err := strconv.Atoi(raw); err == nil {
				seed[filter.FieldPageSize] = n
			} else {
				s.logger.Debug("Некорректный сохранённый pageSize проигнорирован",
					slog.String("value", raw),
				)
			}
		}
	}
	for k, v := range opts.Initial.Clone() {
		seed[k] = v
	}

	s.state = filter.Validate(seed, schema)
	s.query = s.state.Encode()
	return s
}

// Schema возвращает схему хранилища.
func (s *QueryStore) Schema() *filter.Schema {
	return s.schema
}

// Namespace возвращает пространство имён предпочтений.
func (s *QueryStore) Namespace() string {
	return s.namespace
}

// State возвращает текущее провалидированное состояние.
func (s *QueryStore) State() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Query возвращает текущую каноническую query string.
func (s *QueryStore) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Subscribe регистрирует обработчик изменений query string.
// Возвращает функцию отписки (идемпотентна).
func (s *QueryStore) Subscribe(fn QueryListener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, storeListener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetFilters применяет updater к копии текущих значений и валидирует результат.
// Если изменилось что-либо кроме page и pageSize, page сбрасывается в 1.
func (s *QueryStore) SetFilters(updater func(filter.Partial) filter.Partial) {
	s.mu.Lock()
	prev := s.state
	next := s.applyLocked(prev, updater)
	if !next.EqualExcept(prev, filter.FieldPage, filter.FieldPageSize) {
		next = next.With(filter.FieldPage, filter.DefaultPage)
	}
	s.commitLocked(prev, next)
}

// applyLocked применяет updater под s.mu. При панике updater блокировка
// снимается, паника пробрасывается вызывающему.
func (s *QueryStore) applyLocked(prev filter.State, updater func(filter.Partial) filter.Partial) filter.State {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Unlock()
			panic(r)
		}
	}()
	return filter.Validate(updater(prev.Values()), s.schema)
}

// SetPage переходит на страницу page (невалидное значение — страница 1).
func (s *QueryStore) SetPage(page int) {
	s.SetFilters(func(p filter.Partial) filter.Partial {
		p[filter.FieldPage] = page
		return p
	})
}

// SetPageSize меняет размер страницы и сохраняет его в предпочтения.
func (s *QueryStore) SetPageSize(size int) {
	s.SetFilters(func(p filter.Partial) filter.Partial {
		p[filter.FieldPageSize] = size
		return p
	})
}

// SetSort меняет токен сортировки (пустой — без сортировки).
func (s *QueryStore) SetSort(token string) {
	s.SetFilters(func(p filter.Partial) filter.Partial {
		p[filter.FieldSort] = token
		return p
	})
}

// SetField меняет одно поле. nil сбрасывает поле к значению по умолчанию.
func (s *QueryStore) SetField(name string, value any) {
	s.SetFilters(func(p filter.Partial) filter.Partial {
		if value == nil {
			delete(p, name)
		} else {
			p[name] = value
		}
		return p
	})
}

// ClearAll сбрасывает все поля к значениям по умолчанию.
func (s *QueryStore) ClearAll() {
	s.SetFilters(func(filter.Partial) filter.Partial {
		return filter.Partial{}
	})
}

// commitLocked заменяет состояние и уведомляет подписчиков.
// Вызывается под s.mu; снимает блокировку.
func (s *QueryStore) commitLocked(prev, next filter.State) {
	if next.Equal(prev) {
		s.mu.Unlock()
		return
	}

	s.state = next
	query := next.Encode()
	changed := query != s.query
	s.query = query

	var listeners []QueryListener
	if changed {
		listeners = make([]QueryListener, len(s.listeners))
		for i, l := range s.listeners {
			listeners[i] = l.fn
		}
	}
	pageSizeChanged := prev.PageSize() != next.PageSize()

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if pageSizeChanged && s.persistent() {
		s.prefs.Set(context.Background(), s.namespace, filter.FieldPageSize, strconv.Itoa(next.PageSize()))
	}

	if changed {
		s.logger.Debug("Query string изменена", slog.String("query", query))
		for _, fn := range listeners {
			fn(query)
		}
	}
}

func (s *QueryStore) persistent() bool {
	return s.prefs != nil && s.namespace != ""
}
