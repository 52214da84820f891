// preferences.go — обработчики /api/v1/preferences/{namespace}[/{field}].
// Долговременное хранилище предпочтений представлений (например pageSize).
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/amitch35/AcornArranger-next-sub000/internal/api/errors"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

// maxPreferenceBody — ограничение тела PUT-запроса.
const maxPreferenceBody = 64 << 10

// preferenceResponse — одно предпочтение.
type preferenceResponse struct {
	Namespace string `json:"namespace"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

// preferenceListResponse — предпочтения пространства имён.
type preferenceListResponse struct {
	Namespace   string                    `json:"namespace"`
	Preferences map[string]preferenceItem `json:"preferences"`
}

type preferenceItem struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// putPreferenceRequest — тело PUT-запроса.
type putPreferenceRequest struct {
	Value *string `json:"value"`
}

// ListPreferences — GET /api/v1/preferences/{namespace}.
func (h *APIHandler) ListPreferences(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	prefs, err := h.opts.Preferences.List(r.Context(), namespace)
	if err != nil {
		h.writePreferenceError(w, err, namespace, "")
		return
	}

	resp := preferenceListResponse{
		Namespace:   namespace,
		Preferences: make(map[string]preferenceItem, len(prefs)),
	}
	for field, p := range prefs {
		resp.Preferences[field] = preferenceItem{Value: p.Value, UpdatedAt: p.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPreference — GET /api/v1/preferences/{namespace}/{field}.
func (h *APIHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	namespace, field := chi.URLParam(r, "namespace"), chi.URLParam(r, "field")

	value, err := h.opts.Preferences.Lookup(r.Context(), namespace, field)
	if err != nil {
		h.writePreferenceError(w, err, namespace, field)
		return
	}
	writeJSON(w, http.StatusOK, preferenceResponse{Namespace: namespace, Field: field, Value: value})
}

// PutPreference — PUT /api/v1/preferences/{namespace}/{field}.
// Тело: {"value": "..."}.
func (h *APIHandler) PutPreference(w http.ResponseWriter, r *http.Request) {
	namespace, field := chi.URLParam(r, "namespace"), chi.URLParam(r, "field")

	var req putPreferenceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreferenceBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается {\"value\": \"...\"}")
		return
	}
	if req.Value == nil {
		apierrors.ValidationError(w, "Поле value обязательно")
		return
	}

	if err := h.opts.Preferences.Store(r.Context(), namespace, field, *req.Value); err != nil {
		h.writePreferenceError(w, err, namespace, field)
		return
	}
	writeJSON(w, http.StatusOK, preferenceResponse{Namespace: namespace, Field: field, Value: *req.Value})
}

// DeletePreference — DELETE /api/v1/preferences/{namespace}/{field}.
func (h *APIHandler) DeletePreference(w http.ResponseWriter, r *http.Request) {
	namespace, field := chi.URLParam(r, "namespace"), chi.URLParam(r, "field")

	if err := h.opts.Preferences.Clear(r.Context(), namespace, field); err != nil {
		h.writePreferenceError(w, err, namespace, field)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writePreferenceError отображает ошибки сервиса предпочтений в HTTP-ответ.
func (h *APIHandler) writePreferenceError(w http.ResponseWriter, err error, namespace, field string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Предпочтение не найдено")
	default:
		h.logger.Error("Ошибка хранилища предпочтений",
			slog.String("namespace", namespace),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка хранилища предпочтений")
	}
}
