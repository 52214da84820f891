package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newBackendHealthServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
	}))
}

func testDephealthConfig(serviceID, backendURL string) DephealthConfig {
	return DephealthConfig{
		ServiceID:         serviceID,
		Group:             "acorn",
		BackendURL:        backendURL,
		BackendHealthPath: "/health",
		CheckInterval:     1 * time.Second,
	}
}

func TestNewDephealthService_ValidURL(t *testing.T) {
	mockServer := newBackendHealthServer(http.StatusOK)
	defer mockServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Изолированный Prometheus registry для тестов
	ds, err := NewDephealthServiceWithRegisterer(
		testDephealthConfig("test-ad-01", mockServer.URL), logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_BackendHealth(t *testing.T) {
	tests := []struct {
		name      string
		serviceID string
		status    int
		healthy   bool
	}{
		{"backend доступен", "test-ad-02", http.StatusOK, true},
		{"backend возвращает 500", "test-ad-03", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := newBackendHealthServer(tt.status)
			defer mockServer.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			ds, err := NewDephealthServiceWithRegisterer(
				testDephealthConfig(tt.serviceID, mockServer.URL), logger, prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("Ошибка создания DephealthService: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := ds.Start(ctx); err != nil {
				t.Fatalf("Ошибка запуска: %v", err)
			}
			defer ds.Stop()

			// Даём время на первую проверку (интервал 1s + запас)
			time.Sleep(3 * time.Second)

			// Ключи Health имеют формат "dependency:host:port"
			health := ds.Health()
			found := false
			for key, val := range health {
				if strings.HasPrefix(key, DepListBackend+":") {
					found = true
					if val != tt.healthy {
						t.Errorf("%s health = %v, ожидалось %v", key, val, tt.healthy)
					}
					break
				}
			}
			if !found {
				t.Errorf("Нет записи для %s в Health(), keys=%v", DepListBackend, healthKeys(health))
			}
		})
	}
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
