// flags.go — разбор составных флагов командной строки.
package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/filter"
)

// parseAllow разбирает значения --allow вида field=1,2,3.
// Повтор поля объединяет списки.
func parseAllow(values []string) (filter.Allowlists, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(filter.Allowlists, len(values))
	for _, v := range values {
		field, list, ok := strings.Cut(v, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("--allow %q: ожидается field=1,2,3", v)
		}
		ids := out[field]
		for _, part := range strings.Split(list, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("--allow %q: некорректный ID %q", v, part)
			}
			ids = append(ids, id)
		}
		out[field] = ids
	}
	return out, nil
}

// parseSet разбирает значения --set вида field=value в сырые параметры.
// Все поля должны входить в схему.
func parseSet(values []string, schema *filter.Schema) (url.Values, error) {
	out := make(url.Values, len(values))
	for _, v := range values {
		field, value, ok := strings.Cut(v, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("--set %q: ожидается field=value", v)
		}
		if !schema.Has(field) {
			return nil, fmt.Errorf("--set %q: поле %q отсутствует в схеме %s", v, field, schema.Entity())
		}
		out[field] = append(out[field], value)
	}
	return out, nil
}

// rawQuery извлекает query-часть из адреса или возвращает строку без '?'.
func rawQuery(s string) string {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		return u.RawQuery
	}
	if _, after, found := strings.Cut(s, "?"); found {
		return after
	}
	return s
}

// cliLogger — текстовый логгер в stderr (stdout занят результатом команды).
func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
