// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Acorn Dashboard мониторит:
//   - backend списков — HTTP checker к health endpoint (critical)
//   - PostgreSQL — SQL checker через pgxpool, только при AD_PREFERENCES_BACKEND=postgres (non-critical:
//     сбой хранилища предпочтений не мешает работе со списками)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// Имена зависимостей в метриках.
const (
	DepListBackend = "list-backend"
	DepPostgres    = "postgresql"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (AD_DEPHEALTH_GROUP)
	Group string
	// BackendURL — базовый URL backend списков
	BackendURL string
	// BackendHealthPath — путь health endpoint backend
	BackendHealthPath string
	// DB — *sql.DB из pgxpool через stdlib.OpenDBFromPool() (nil — PostgreSQL не мониторится)
	DB *sql.DB
	// PostgresURL — URL PostgreSQL для лейблов метрик (без пароля)
	PostgresURL string
	// CheckInterval — интервал проверки (AD_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// IsEntry — лейбл isentry=yes для всех зависимостей (DEPHEALTH_ISENTRY)
	IsEntry bool
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	backendOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.BackendURL),
		dephealth.WithHTTPHealthPath(cfg.BackendHealthPath),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if parsed, err := url.Parse(cfg.BackendURL); err == nil && parsed.Scheme == "https" {
		backendOpts = append(backendOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}
	if cfg.IsEntry {
		backendOpts = append(backendOpts, dephealth.WithLabel("isentry", "yes"))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP(DepListBackend, backendOpts...),
	)

	if cfg.DB != nil {
		pgOpts := []dephealth.DependencyOption{
			dephealth.FromURL(cfg.PostgresURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		}
		if cfg.IsEntry {
			pgOpts = append(pgOpts, dephealth.WithLabel("isentry", "yes"))
		}
		// Connection pool mode: проверка через существующий пул
		opts = append(opts, dephealth.AddDependency(DepPostgres, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)), pgOpts...))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
