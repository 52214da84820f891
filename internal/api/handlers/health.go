// health.go — обработчики health endpoints Acorn Dashboard.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище предпочтений, backend списков)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amitch35/AcornArranger-next-sub000/internal/config"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

const serviceName = "acorn-dashboard"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// DependencyHealth — текущее состояние зависимостей из dephealth.
// Ключ — "зависимость:host:port", значение — true если ok.
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	prefsChecker ReadinessChecker
	deps         DependencyHealth
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// prefsChecker — проверка хранилища предпочтений (nil — хранилище без внешних зависимостей).
// deps — состояние backend списков из dephealth (nil — не проверяется).
func NewHealthHandler(prefsChecker ReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		prefsChecker: prefsChecker,
		deps:         deps,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Preferences healthCheckResult `json:"preferences"`
		ListBackend healthCheckResult `json:"list_backend"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe.
// Хранилище предпочтений недоступно — fail (503); backend списков недоступен — degraded:
// страницы продолжают работать на закэшированных данных.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	if h.prefsChecker != nil {
		st, msg := h.prefsChecker.CheckReady()
		resp.Checks.Preferences = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks.Preferences = healthCheckResult{Status: statusOK}
	}

	resp.Checks.ListBackend = h.backendStatus()
	resp.Status = overallStatus(resp.Checks.Preferences.Status, resp.Checks.ListBackend.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// backendStatus сводит состояние backend списков из dephealth.
func (h *HealthHandler) backendStatus() healthCheckResult {
	if h.deps == nil {
		return healthCheckResult{Status: statusOK, Message: "не проверяется"}
	}
	found := false
	for key, ok := range h.deps.Health() {
		if !strings.HasPrefix(key, service.DepListBackend+":") {
			continue
		}
		found = true
		if !ok {
			return healthCheckResult{Status: statusDegraded, Message: "backend списков недоступен"}
		}
	}
	if !found {
		return healthCheckResult{Status: statusDegraded, Message: "проверка ещё не выполнялась"}
	}
	return healthCheckResult{Status: statusOK}
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// Константы статусов health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
