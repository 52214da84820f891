// canonical.go — обработчик GET /api/v1/views/{entity}/canonical.
//
// Приводит произвольную query string представления к канонической форме:
// декодирует, валидирует по схеме сущности, подмешивает сохранённый pageSize
// (заголовок X-Preferences-Namespace) и кодирует обратно.
// Если браузер передал HX-Current-URL с неканонической query, в ответе
// выставляется HX-Replace-Url: адресная строка заменяется без новой записи истории.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/amitch35/AcornArranger-next-sub000/internal/api/errors"
	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/filter"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

// Заголовки HTMX и пространства имён предпочтений.
const (
	HeaderPrefsNamespace = "X-Preferences-Namespace"
	HeaderHXCurrentURL   = "HX-Current-URL"
	HeaderHXReplaceURL   = "HX-Replace-Url"
)

// canonicalResponse — результат каноникализации.
type canonicalResponse struct {
	Entity  string         `json:"entity"`
	Query   string         `json:"query"`
	Filters filter.Partial `json:"filters"`
}

// GetCanonical — GET /api/v1/views/{entity}/canonical?<raw>.
func (h *APIHandler) GetCanonical(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	store, ok := h.newViewStore(w, r, entity)
	if !ok {
		return
	}

	mirrorReplaceURL(w, r, store)
	writeJSON(w, http.StatusOK, canonicalResponse{
		Entity:  entity,
		Query:   store.Query(),
		Filters: store.State().NonDefault(),
	})
}

// newViewStore строит хранилище фильтров представления из query запроса.
// При неизвестной сущности записывает ошибку и возвращает false.
func (h *APIHandler) newViewStore(w http.ResponseWriter, r *http.Request, entity string) (*service.QueryStore, bool) {
	schema, err := h.opts.Registry.Get(entity)
	if err != nil {
		if errors.Is(err, filter.ErrUnknownEntity) {
			apierrors.UnknownEntity(w, err.Error())
		} else {
			apierrors.InternalError(w, "Ошибка получения схемы фильтров")
		}
		return nil, false
	}

	opts := service.StoreOptions{
		Namespace: r.Header.Get(HeaderPrefsNamespace),
		Initial:   filter.Decode(filter.ParseQuery(r.URL.RawQuery), schema, h.opts.Allowlists[entity]),
	}
	if h.opts.Preferences != nil {
		opts.Preferences = h.opts.Preferences
	}
	return service.NewQueryStore(schema, opts, h.logger), true
}
