// Пакет config — загрузка и валидация конфигурации Acorn Dashboard
// из переменных окружения (префикс AD_).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Backend хранилища предпочтений.
const (
	PreferencesMemory   = "memory"
	PreferencesFile     = "file"
	PreferencesBadger   = "badger"
	PreferencesPostgres = "postgres"
)

// Config содержит все параметры конфигурации Acorn Dashboard.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Backend списков ---

	// Базовый URL backend-обработчиков списков
	BackendURL string
	// Путь health endpoint backend (для dephealth)
	BackendHealthPath string
	// Префикс endpoint списков (по умолчанию /api → /api/staff)
	BackendListPrefix string
	// CA-сертификат backend (пусто — системный пул)
	BackendCACert string
	// Таймаут запросов к backend (0 — без таймаута, отмена только явная)
	BackendTimeout time.Duration

	// --- Кэш ответов ---

	// Максимальное количество записей кэша
	CacheMaxSize int
	// Время хранения записи в кэше
	CacheTTL time.Duration
	// Окно свежести: более молодые ответы переиспользуются без запроса
	StaleAfter time.Duration

	// --- Предпочтения ---

	// Backend хранилища: memory, file, badger, postgres
	PreferencesBackend string
	// Путь к JSON-файлу (backend file)
	PreferencesFile string
	// Директория BadgerDB (backend badger)
	BadgerDir string
	// Таймаут операций с хранилищем предпочтений
	PreferencesTimeout time.Duration

	// --- PostgreSQL (только backend postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Dephealth ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AD_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("AD_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("AD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AD_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// AD_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("AD_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("AD_LOG_LEVEL: %w", err)
	}

	// AD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AD_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("AD_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("AD_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("AD_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// AD_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("AD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Backend списков ---

	// AD_BACKEND_URL — базовый URL backend (по умолчанию http://localhost:3000)
	cfg.BackendURL = strings.TrimRight(getEnvDefault("AD_BACKEND_URL", "http://localhost:3000"), "/")
	if u, perr := url.Parse(cfg.BackendURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("AD_BACKEND_URL: ожидается http(s) URL, получено %q", cfg.BackendURL)
	}
	cfg.BackendHealthPath = getEnvDefault("AD_BACKEND_HEALTH_PATH", "/health")
	// AD_BACKEND_LIST_PREFIX — префикс endpoint списков: <prefix>/<entity>
	cfg.BackendListPrefix = "/" + strings.Trim(getEnvDefault("AD_BACKEND_LIST_PREFIX", "/api"), "/")
	cfg.BackendCACert = os.Getenv("AD_BACKEND_CA_CERT")

	// AD_BACKEND_TIMEOUT — по умолчанию 0: запрос отменяется только явно
	cfg.BackendTimeout, err = getEnvDuration("AD_BACKEND_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("AD_BACKEND_TIMEOUT: %w", err)
	}

	// --- Кэш ответов ---

	cfg.CacheMaxSize, err = getEnvInt("AD_CACHE_MAX_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("AD_CACHE_MAX_SIZE: %w", err)
	}
	if cfg.CacheMaxSize <= 0 {
		return nil, fmt.Errorf("AD_CACHE_MAX_SIZE: значение должно быть > 0")
	}
	cfg.CacheTTL, err = getEnvDurationFallback("AD_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AD_CACHE_TTL: %w", err)
	}
	cfg.StaleAfter, err = getEnvDurationFallback("AD_STALE_AFTER", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_STALE_AFTER: %w", err)
	}

	// --- Предпочтения ---

	cfg.PreferencesBackend = strings.ToLower(getEnvDefault("AD_PREFERENCES_BACKEND", PreferencesFile))
	switch cfg.PreferencesBackend {
	case PreferencesMemory, PreferencesFile, PreferencesBadger, PreferencesPostgres:
	default:
		return nil, fmt.Errorf("AD_PREFERENCES_BACKEND: недопустимое значение %q, допустимые: memory, file, badger, postgres",
			cfg.PreferencesBackend)
	}
	cfg.PreferencesFile = getEnvDefault("AD_PREFERENCES_FILE", "./data/preferences.json")
	cfg.BadgerDir = getEnvDefault("AD_BADGER_DIR", "./data/preferences")
	cfg.PreferencesTimeout, err = getEnvDurationFallback("AD_PREFERENCES_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_PREFERENCES_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.PreferencesBackend == PreferencesPostgres {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("AD_DEPHEALTH_GROUP", "acorn")
	cfg.DephealthCheckInterval, err = getEnvDuration("AD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// loadDatabase читает параметры PostgreSQL (обязательны для backend postgres).
func loadDatabase(cfg *Config) error {
	var err error

	if cfg.DBHost, err = getEnvRequired("AD_DB_HOST"); err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("AD_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("AD_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("AD_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("AD_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("AD_DB_PASSWORD"); err != nil {
		return err
	}
	cfg.DBSSLMode = getEnvDefault("AD_DB_SSL_MODE", "disable")
	return nil
}

// ListEndpoint возвращает endpoint списка сущности на backend.
func (c *Config) ListEndpoint(entity string) string {
	if c.BackendListPrefix == "/" {
		return "/" + entity
	}
	return c.BackendListPrefix + "/" + entity
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате pgx.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов dephealth).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationFallback возвращает положительную time.Duration из переменной окружения.
// Если переменная не задана, используется fallbackVal.
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallbackVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
