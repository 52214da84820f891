// Пакет service — логика синхронизации состояния списков Admin Dashboard:
// хранилище фильтров, контроллер запросов, кэш ответов, предпочтения.
//
// ResponseCache — LRU-кэш страниц списков с TTL, ключ — (endpoint, каноническая query string).
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amitch35/AcornArranger-next-sub000/internal/listclient"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ad_cache_hits_total",
		Help: "Общее количество попаданий в кэш ответов списков.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ad_cache_misses_total",
		Help: "Общее количество промахов кэша ответов списков.",
	})
)

// Значения по умолчанию для кэша, создаваемого контроллером без явного кэша.
const (
	defaultCacheSize = 200
	defaultCacheTTL  = 10 * time.Minute
)

// CacheEntry — закэшированная страница и время её получения.
type CacheEntry struct {
	Page      listclient.Page
	FetchedAt time.Time
}

// IsFresh — запись моложе staleAfter относительно now.
func (e *CacheEntry) IsFresh(now time.Time, staleAfter time.Duration) bool {
	return now.Sub(e.FetchedAt) < staleAfter
}

// ResponseCache — кэш ответов списков.
// TTL ограничивает хранение; свежесть для повторного использования
// определяется отдельно окном staleAfter контроллера.
// Может разделяться несколькими контроллерами.
type ResponseCache struct {
	cache *expirable.LRU[string, *CacheEntry]
	now   func() time.Time
}

// NewResponseCache создаёт кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewResponseCache(maxSize int, ttl time.Duration) *ResponseCache {
	cache := expirable.NewLRU[string, *CacheEntry](maxSize, nil, ttl)
	return &ResponseCache{cache: cache, now: time.Now}
}

// CacheKey строит ключ кэша из endpoint и канонической query string.
func CacheKey(endpoint, query string) string {
	return endpoint + "?" + query
}

// Get возвращает запись по ключу. Обновляет Prometheus-метрики hit/miss.
func (c *ResponseCache) Get(key string) (*CacheEntry, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Peek возвращает запись без обновления метрик и порядка LRU.
func (c *ResponseCache) Peek(key string) (*CacheEntry, bool) {
	return c.cache.Peek(key)
}

// Set сохраняет страницу с текущим временем получения.
func (c *ResponseCache) Set(key string, page listclient.Page) *CacheEntry {
	entry := &CacheEntry{Page: page, FetchedAt: c.now()}
	c.cache.Add(key, entry)
	return entry
}

// Delete удаляет запись из кэша.
func (c *ResponseCache) Delete(key string) {
	c.cache.Remove(key)
}

// Len возвращает количество записей.
func (c *ResponseCache) Len() int {
	return c.cache.Len()
}
