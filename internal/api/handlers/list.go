// list.go — обработчик GET /api/v1/views/{entity}/list.
//
// Серверная выдача страницы списка: query приводится к канонической форме,
// контроллер запросов берёт свежий ответ из общего кэша либо запрашивает backend
// (GET <endpoint>?<canonical>). Отключение клиента отменяет запрос к backend.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/amitch35/AcornArranger-next-sub000/internal/api/errors"
	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/request"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

// listResponse — страница списка.
type listResponse struct {
	Entity    string            `json:"entity"`
	Query     string            `json:"query"`
	Data      []json.RawMessage `json:"data"`
	Total     int               `json:"total"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// GetList — GET /api/v1/views/{entity}/list?<raw>.
func (h *APIHandler) GetList(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	store, ok := h.newViewStore(w, r, entity)
	if !ok {
		return
	}

	ctrl := service.NewRequestController(h.opts.ListEndpoint(entity), h.opts.Fetcher, service.ControllerOptions{
		Cache:      h.opts.Cache,
		StaleAfter: h.opts.StaleAfter,
		Context:    r.Context(),
	}, h.logger)
	defer ctrl.Close()

	ctrl.Attach(store)
	ctrl.Wait()
	snap := ctrl.Snapshot()

	mirrorReplaceURL(w, r, store)

	if snap.Status == request.StatusError {
		status, message := http.StatusBadGateway, "Backend списков недоступен"
		if snap.Err != nil {
			message = snap.Err.Message
			if snap.Err.Status >= 400 && snap.Err.Status < 500 {
				status = snap.Err.Status
			}
		}
		apierrors.WriteError(w, status, apierrors.CodeBackendError, message)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Entity:    entity,
		Query:     snap.Query,
		Data:      snap.Items,
		Total:     snap.Total,
		FetchedAt: snap.FetchedAt,
	})
}
