// Пакет listclient — HTTP-клиент к backend-обработчикам списков Admin Dashboard.
// Выполняет GET <endpoint>?<каноническая query string> и нормализует ответ
// в Result: либо страница {items, total}, либо RequestError.
package listclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes — ограничение размера тела ответа backend.
const maxBodyBytes = 10 << 20

var tracer = otel.Tracer("acorn.listclient")

// Client — HTTP-клиент backend-обработчиков списков.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент.
// baseURL — базовый URL backend (например, http://localhost:3000); для
// абсолютных endpoint не используется.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов; 0 — без таймаута, отмена только через context.
func New(
	baseURL string,
	caCertPath string,
	timeout time.Duration,
	logger *slog.Logger,
) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата backend: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат backend добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "list_client")),
	}, nil
}

// BuildURL собирает URL запроса: endpoint + "?" + query.
// Относительный endpoint дополняется baseURL. Пустая query не добавляет '?'.
func BuildURL(baseURL, endpoint, query string) string {
	u := endpoint
	if !strings.Contains(endpoint, "://") {
		u = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	}
	if query != "" {
		u += "?" + query
	}
	return u
}

// Fetch выполняет GET к endpoint с канонической query string.
// Никогда не возвращает Go-ошибку: все сбои упакованы в Result.Err.
// Отмена ctx прерывает запрос на уровне транспорта.
func (c *Client) Fetch(ctx context.Context, endpoint, query string) Result {
	ctx, span := tracer.Start(ctx, "listclient.Fetch",
		trace.WithAttributes(
			attribute.String("list.endpoint", endpoint),
			attribute.String("list.query", query),
		),
	)
	defer span.End()

	reqURL := BuildURL(c.baseURL, endpoint, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return failure(0, fmt.Sprintf("некорректный URL запроса: %v", err), err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "context canceled")
			return failure(0, "запрос отменён", ctxErr)
		}
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("Ошибка сети при запросе списка",
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return failure(0, fmt.Sprintf("ошибка сети: %v", err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "context canceled")
			return failure(resp.StatusCode, "запрос отменён", ctxErr)
		}
		span.SetStatus(codes.Error, err.Error())
		return failure(resp.StatusCode, fmt.Sprintf("ошибка чтения ответа: %v", err), err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	result := Normalize(resp.StatusCode, body)
	if !result.OK {
		span.SetStatus(codes.Error, result.Err.Message)
	} else {
		span.SetAttributes(
			attribute.Int("list.items", len(result.Page.Items)),
			attribute.Int("list.total", result.Page.Total),
		)
	}

	c.logger.Debug("Запрос списка выполнен",
		slog.String("url", reqURL),
		slog.Int("status", resp.StatusCode),
		slog.Bool("ok", result.OK),
		slog.Duration("duration", time.Since(start)),
	)
	return result
}

// IsCanceled — ошибка вызвана отменой или истечением контекста.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("файл %s не содержит PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
