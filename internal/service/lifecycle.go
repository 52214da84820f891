// lifecycle.go — контроллер жизненного цикла запросов списка (RequestController).
//
// На каждую новую каноническую query string контроллер отменяет активный
// запрос и только после этого запускает новый. Ответ отменённого или
// вытесненного запроса отбрасывается по номеру поколения, даже если транспорт
// не прервал его. Свежий ответ из кэша (моложе StaleAfter) выдаётся без сети.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/request"
	"github.com/amitch35/AcornArranger-next-sub000/internal/listclient"
)

// Prometheus-метрики запросов списков.
var (
	listRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_list_requests_total",
		Help: "Запросы списков по исходу: success, error, superseded, discarded, cache.",
	}, []string{"outcome"})
	listRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ad_list_request_duration_seconds",
		Help:    "Длительность запросов списков.",
		Buckets: prometheus.DefBuckets,
	})
)

// DefaultStaleAfter — окно свежести ответа по умолчанию.
const DefaultStaleAfter = 30 * time.Second

// Fetcher выполняет запрос страницы списка. Должен учитывать отмену ctx.
// Реализуется *listclient.Client.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint, query string) listclient.Result
}

// FetcherFunc — адаптер функции к Fetcher.
type FetcherFunc func(ctx context.Context, endpoint, query string) listclient.Result

// Fetch вызывает f.
func (f FetcherFunc) Fetch(ctx context.Context, endpoint, query string) listclient.Result {
	return f(ctx, endpoint, query)
}

// Record — один логический запрос (endpoint, query) и его отмена.
type Record struct {
	ID         string
	Endpoint   string
	Query      string
	Generation uint64
	StartedAt  time.Time
	cancel     context.CancelFunc
}

// Snapshot — наблюдаемое состояние контроллера.
type Snapshot struct {
	Status   request.Status
	Endpoint string
	Query    string

	// Данные текущей query из кэша (HasData=false — данных нет)
	HasData   bool
	Items     []json.RawMessage
	Total     int
	FetchedAt time.Time
	Stale     bool

	// Ошибка последнего запроса (только при Status=error)
	Err *listclient.RequestError

	// IsFirstLoad — идёт запрос, данных для query нет (полный skeleton)
	IsFirstLoad bool
	// IsRefreshing — идёт запрос, показываются закэшированные данные
	IsRefreshing bool

	// Previous — последняя успешная страница другой query (если для текущей данных нет)
	Previous      *listclient.Page
	PreviousQuery string

	// RequestID — идентификатор активного запроса
	RequestID string
}

// SnapshotListener — обработчик изменения состояния контроллера.
type SnapshotListener func(Snapshot)

// ControllerOptions — параметры RequestController.
type ControllerOptions struct {
	// Cache — общий кэш ответов (nil — собственный кэш контроллера)
	Cache *ResponseCache
	// StaleAfter — окно свежести (0 — DefaultStaleAfter)
	StaleAfter time.Duration
	// Context — родительский контекст всех запросов (nil — context.Background)
	Context context.Context
}

// RequestController — не более одного активного запроса на представление.
// Уведомления доставляются последовательно; обработчик не должен синхронно
// вызывать методы, меняющие состояние контроллера.
type RequestController struct {
	endpoint   string
	fetcher    Fetcher
	cache      *ResponseCache
	staleAfter time.Duration
	logger     *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu            sync.Mutex
	status        request.Status
	statusBefore  request.Status
	statusQuery   string
	query         string
	hasQuery      bool
	generation    uint64
	active        *Record
	lastErr       *listclient.RequestError
	previous      *listclient.Page
	previousQuery string
	listeners     []snapshotListener
	nextID        int
	unsubscribe   func()
	closed        bool

	notifyMu sync.Mutex
}

type snapshotListener struct {
	id int
	fn SnapshotListener
}

// NewRequestController создаёт контроллер для endpoint.
func NewRequestController(
	endpoint string,
	fetcher Fetcher,
	opts ControllerOptions,
	logger *slog.Logger,
) *RequestController {
	cache := opts.Cache
	if cache == nil {
		cache = NewResponseCache(defaultCacheSize, defaultCacheTTL)
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := context.WithCancel(parent)
	return &RequestController{
		endpoint:   endpoint,
		fetcher:    fetcher,
		cache:      cache,
		staleAfter: staleAfter,
		logger: logger.With(
			slog.String("component", "request_controller"),
			slog.String("endpoint", endpoint),
		),
		baseCtx:      ctx,
		stop:         stop,
		status:       request.StatusIdle,
		statusBefore: request.StatusIdle,
	}
}

// Attach подписывает контроллер на хранилище и сразу запрашивает текущую query.
// Повторный Attach заменяет предыдущую подписку.
func (c *RequestController) Attach(store *QueryStore) {
	unsub := store.Subscribe(c.Observe)

	c.mu.Lock()
	prev := c.unsubscribe
	c.unsubscribe = unsub
	c.mu.Unlock()

	if prev != nil {
		prev()
	}
	c.Observe(store.Query())
}

// Observe реагирует на новую каноническую query string:
// отменяет активный запрос, затем выдаёт свежий кэш или запускает запрос.
// Повтор query активного запроса игнорируется.
func (c *RequestController) Observe(query string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.active != nil && c.active.Query == query {
		c.mu.Unlock()
		return
	}

	c.supersedeLocked()
	c.query = query
	c.hasQuery = true

	if entry, ok := c.cache.Get(CacheKey(c.endpoint, query)); ok && entry.IsFresh(c.cache.now(), c.staleAfter) {
		listRequestsTotal.WithLabelValues("cache").Inc()
		c.lastErr = nil
		c.setStatusLocked(request.StatusSuccess)
		c.statusQuery = query
		c.logger.Debug("Свежий ответ выдан из кэша", slog.String("query", query))
	} else {
		c.startLocked()
	}

	c.emitLocked()
}

// Retry повторяет последнюю query без учёта свежести кэша.
func (c *RequestController) Retry() {
	c.mu.Lock()
	if c.closed || !c.hasQuery {
		c.mu.Unlock()
		return
	}

	c.supersedeLocked()
	c.startLocked()
	c.emitLocked()
}

// Cancel отменяет активный запрос без замены и возвращает статус,
// бывший до его начала. Если тот статус относился к другой query,
// контроллер переходит в idle. Без активного запроса — no-op.
func (c *RequestController) Cancel() {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}

	c.supersedeLocked()
	revert := c.statusBefore
	if c.statusQuery != c.query {
		revert = request.StatusIdle
	}
	c.setStatusLocked(revert)
	c.logger.Debug("Запрос отменён", slog.String("query", c.query))
	c.emitLocked()
}

// Snapshot возвращает текущее состояние.
func (c *RequestController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe регистрирует обработчик изменений состояния.
// Возвращает функцию отписки (идемпотентна).
func (c *RequestController) Subscribe(fn SnapshotListener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, snapshotListener{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Wait ожидает завершения всех запущенных запросов.
func (c *RequestController) Wait() {
	c.wg.Wait()
}

// Close отписывается от хранилища, отменяет активный запрос и ждёт горутины.
func (c *RequestController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.supersedeLocked()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.stop()
	c.wg.Wait()
}

// supersedeLocked отменяет активный запрос и делает его ответ устаревшим.
func (c *RequestController) supersedeLocked() {
	if c.active == nil {
		return
	}
	c.active.cancel()
	c.logger.Debug("Активный запрос вытеснен",
		slog.String("request_id", c.active.ID),
		slog.String("query", c.active.Query),
	)
	c.active = nil
	c.generation++
	listRequestsTotal.WithLabelValues("superseded").Inc()
}

// startLocked запускает запрос для c.query.
func (c *RequestController) startLocked() {
	c.generation++
	ctx, cancel := context.WithCancel(c.baseCtx)
	rec := &Record{
		ID:         uuid.NewString(),
		Endpoint:   c.endpoint,
		Query:      c.query,
		Generation: c.generation,
		StartedAt:  time.Now(),
		cancel:     cancel,
	}

	if c.status != request.StatusFetching {
		c.statusBefore = c.status
	}
	c.setStatusLocked(request.StatusFetching)
	c.active = rec

	c.wg.Add(1)
	go c.run(ctx, rec)
}

// run выполняет запрос и применяет результат, если он не устарел.
func (c *RequestController) run(ctx context.Context, rec *Record) {
	defer c.wg.Done()

	res := c.fetcher.Fetch(ctx, rec.Endpoint, rec.Query)
	listRequestDuration.Observe(time.Since(rec.StartedAt).Seconds())

	c.mu.Lock()
	if c.active != rec || c.generation != rec.Generation {
		c.mu.Unlock()
		listRequestsTotal.WithLabelValues("discarded").Inc()
		c.logger.Debug("Устаревший ответ отброшен",
			slog.String("request_id", rec.ID),
			slog.String("query", rec.Query),
		)
		return
	}
	c.active = nil
	rec.cancel()

	if res.OK {
		c.cache.Set(CacheKey(rec.Endpoint, rec.Query), res.Page)
		page := res.Page
		c.previous = &page
		c.previousQuery = rec.Query
		c.lastErr = nil
		c.setStatusLocked(request.StatusSuccess)
		c.statusQuery = rec.Query
		listRequestsTotal.WithLabelValues("success").Inc()
	} else {
		if res.Err == nil {
			res.Err = &listclient.RequestError{Message: "запрос завершился без результата"}
		}
		c.lastErr = res.Err
		c.setStatusLocked(request.StatusError)
		c.statusQuery = rec.Query
		listRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Запрос списка завершился ошибкой",
			slog.String("request_id", rec.ID),
			slog.String("query", rec.Query),
			slog.String("error", res.Err.Error()),
		)
	}

	c.emitLocked()
}

// setStatusLocked выполняет переход статуса по матрице request.
func (c *RequestController) setStatusLocked(to request.Status) {
	next, err := request.Transition(c.status, to)
	if err != nil {
		c.logger.Error("Недопустимый переход статуса", slog.String("error", err.Error()))
		return
	}
	c.status = next
}

func (c *RequestController) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:   c.status,
		Endpoint: c.endpoint,
		Query:    c.query,
	}
	if c.status == request.StatusError {
		snap.Err = c.lastErr
	}
	if c.active != nil {
		snap.RequestID = c.active.ID
	}

	if c.hasQuery {
		if entry, ok := c.cache.Peek(CacheKey(c.endpoint, c.query)); ok {
			snap.HasData = true
			snap.Items = entry.Page.Items
			snap.Total = entry.Page.Total
			snap.FetchedAt = entry.FetchedAt
			snap.Stale = !entry.IsFresh(c.cache.now(), c.staleAfter)
		}
	}

	fetching := c.status == request.StatusFetching
	snap.IsFirstLoad = fetching && !snap.HasData
	snap.IsRefreshing = fetching && snap.HasData

	if !snap.HasData && c.previous != nil && c.previousQuery != c.query {
		snap.Previous = c.previous
		snap.PreviousQuery = c.previousQuery
	}
	return snap
}

// emitLocked рассылает снимок подписчикам. Вызывается под c.mu; снимает блокировку.
func (c *RequestController) emitLocked() {
	snap := c.snapshotLocked()
	listeners := make([]SnapshotListener, len(c.listeners))
	for i, l := range c.listeners {
		listeners[i] = l.fn
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
