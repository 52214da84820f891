// cmd_serve.go — команда serve: HTTP-сервис Acorn Dashboard.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/amitch35/AcornArranger-next-sub000/internal/api/handlers"
	"github.com/amitch35/AcornArranger-next-sub000/internal/api/middleware"
	"github.com/amitch35/AcornArranger-next-sub000/internal/config"
	"github.com/amitch35/AcornArranger-next-sub000/internal/database"
	"github.com/amitch35/AcornArranger-next-sub000/internal/listclient"
	"github.com/amitch35/AcornArranger-next-sub000/internal/repository"
	"github.com/amitch35/AcornArranger-next-sub000/internal/server"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

// preferenceBackend — открытое хранилище предпочтений.
type preferenceBackend struct {
	repo    repository.PreferenceRepository
	checker handlers.ReadinessChecker
	// db — *sql.DB поверх pgxpool для topologymetrics (только postgres)
	db      *sql.DB
	dbURL   string
	closers []func()
}

func (b *preferenceBackend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Acorn Dashboard запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("preferences_backend", cfg.PreferencesBackend),
	)
	if os.Getenv("AD_DEPHEALTH_GROUP") == "" {
		logger.Warn("AD_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Хранилище предпочтений
	backend, err := openPreferences(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.close()
	prefs := service.NewPreferences(backend.repo, cfg.PreferencesTimeout, logger)

	// 4. Клиент backend списков и общий кэш ответов
	client, err := listclient.New(cfg.BackendURL, cfg.BackendCACert, cfg.BackendTimeout, logger)
	if err != nil {
		return fmt.Errorf("создание клиента backend: %w", err)
	}
	cache := service.NewResponseCache(cfg.CacheMaxSize, cfg.CacheTTL)

	// 5. topologymetrics — мониторинг backend списков (и PostgreSQL)
	var deps handlers.DependencyHealth
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:         "acorn-dashboard",
		Group:             cfg.DephealthGroup,
		BackendURL:        cfg.BackendURL,
		BackendHealthPath: cfg.BackendHealthPath,
		DB:                backend.db,
		PostgresURL:       backend.dbURL,
		CheckInterval:     cfg.DephealthCheckInterval,
		IsEntry:           cfg.DephealthIsEntry,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		deps = dephealthSvc
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 6. Обработчики API
	healthHandler := handlers.NewHealthHandler(backend.checker, deps)
	apiHandler := handlers.NewAPIHandler(healthHandler, handlers.Options{
		Preferences:  prefs,
		Fetcher:      client,
		Cache:        cache,
		StaleAfter:   cfg.StaleAfter,
		ListEndpoint: cfg.ListEndpoint,
	}, logger)

	// 7. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Acorn Dashboard остановлен")
	return nil
}

// openPreferences открывает хранилище предпочтений по AD_PREFERENCES_BACKEND.
func openPreferences(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*preferenceBackend, error) {
	b := &preferenceBackend{}

	switch cfg.PreferencesBackend {
	case config.PreferencesMemory:
		b.repo = repository.NewMemoryPreferenceRepository()

	case config.PreferencesFile:
		repo, err := repository.NewFilePreferenceRepository(cfg.PreferencesFile)
		if err != nil {
			return nil, fmt.Errorf("открытие файла предпочтений: %w", err)
		}
		b.repo = repo
		logger.Info("Предпочтения хранятся в файле", slog.String("path", repo.Path()))

	case config.PreferencesBadger:
		repo, err := repository.OpenBadgerPreferenceRepository(cfg.BadgerDir, logger)
		if err != nil {
			return nil, fmt.Errorf("открытие BadgerDB: %w", err)
		}
		b.repo, b.checker = repo, repo
		b.closers = append(b.closers, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Ошибка закрытия BadgerDB", slog.String("error", err.Error()))
			}
		})

	case config.PreferencesPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, fmt.Errorf("миграции БД: %w", err)
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		// Адаптер pgxpool → *sql.DB для topologymetrics
		db := stdlib.OpenDBFromPool(pool)
		b.repo = repository.NewPostgresPreferenceRepository(pool)
		b.checker = database.NewReadinessChecker(pool)
		b.db, b.dbURL = db, cfg.DatabaseURL()
		b.closers = append(b.closers, pool.Close, func() { _ = db.Close() })

	default:
		return nil, fmt.Errorf("неизвестный backend предпочтений %q", cfg.PreferencesBackend)
	}

	return b, nil
}
