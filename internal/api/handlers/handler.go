// handler.go — основной обработчик API Acorn Dashboard.
// Объединяет health, предпочтения, каноникализацию фильтров и выдачу списков,
// регистрирует маршруты в chi.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/filter"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

// Options — зависимости APIHandler.
type Options struct {
	// Preferences — сервис предпочтений (обязателен)
	Preferences *service.Preferences
	// Registry — реестр схем фильтров (nil — filter.DefaultRegistry)
	Registry *filter.Registry
	// Allowlists — ограничения ID-наборов по сущностям
	Allowlists map[string]filter.Allowlists

	// Fetcher — клиент backend списков (nil — endpoint /list не регистрируется)
	Fetcher service.Fetcher
	// Cache — общий кэш ответов списков
	Cache *service.ResponseCache
	// StaleAfter — окно свежести кэша
	StaleAfter time.Duration
	// ListEndpoint — endpoint списка сущности на backend
	ListEndpoint func(entity string) string
}

// APIHandler — основной обработчик API Acorn Dashboard.
type APIHandler struct {
	health *HealthHandler
	opts   Options
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, opts Options, logger *slog.Logger) *APIHandler {
	if opts.Registry == nil {
		opts.Registry = filter.DefaultRegistry()
	}
	if opts.Cache == nil {
		opts.Cache = service.NewResponseCache(500, 5*time.Minute)
	}
	if opts.ListEndpoint == nil {
		opts.ListEndpoint = func(entity string) string { return "/api/" + entity }
	}
	return &APIHandler{
		health: health,
		opts:   opts,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует маршруты API в роутере.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/views/{entity}/canonical", h.GetCanonical)
		if h.opts.Fetcher != nil {
			r.Get("/views/{entity}/list", h.GetList)
		}

		r.Get("/preferences/{namespace}", h.ListPreferences)
		r.Get("/preferences/{namespace}/{field}", h.GetPreference)
		r.Put("/preferences/{namespace}/{field}", h.PutPreference)
		r.Delete("/preferences/{namespace}/{field}", h.DeletePreference)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// mirrorReplaceURL выставляет HX-Replace-Url, если query текущего адреса браузера
// (HX-Current-URL) отличается от канонической query хранилища.
func mirrorReplaceURL(w http.ResponseWriter, r *http.Request, store *service.QueryStore) {
	current := r.Header.Get(HeaderHXCurrentURL)
	if current == "" {
		return
	}
	u, err := url.Parse(current)
	if err != nil {
		return
	}
	stop := service.MirrorToURL(store, service.HistoryReplacerFunc(func(query string) {
		replaced := *u
		replaced.RawQuery = query
		w.Header().Set(HeaderHXReplaceURL, replaced.String())
	}), u.RawQuery)
	stop()
}
