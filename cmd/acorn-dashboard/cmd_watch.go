// cmd_watch.go — команда watch.
//
// Открывает представление как браузер: начальные фильтры из --url,
// сохранённый pageSize из предпочтений, затем применяет изменения в порядке
// --set, --sort, --page-size, --page. Контроллер запросов следует за каждым
// изменением query string; печатается итоговое состояние запроса.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/filter"
	"github.com/amitch35/AcornArranger-next-sub000/internal/listclient"
	"github.com/amitch35/AcornArranger-next-sub000/internal/repository"
	"github.com/amitch35/AcornArranger-next-sub000/internal/service"
)

// watchOutput — итог команды watch.
type watchOutput struct {
	Entity    string            `json:"entity"`
	Endpoint  string            `json:"endpoint"`
	Query     string            `json:"query"`
	Status    string            `json:"status"`
	Total     int               `json:"total"`
	Data      []json.RawMessage `json:"data"`
	FetchedAt *time.Time        `json:"fetched_at,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func runWatch(cmd *cobra.Command, _ []string) error {
	schema, err := lookupSchema()
	if err != nil {
		return err
	}
	allow, err := parseAllow(allowList)
	if err != nil {
		return err
	}
	set, err := parseSet(watchSet, schema)
	if err != nil {
		return err
	}

	logger := cliLogger()

	var repo repository.PreferenceRepository = repository.NewMemoryPreferenceRepository()
	if watchPrefsFile != "" {
		fileRepo, ferr := repository.NewFilePreferenceRepository(watchPrefsFile)
		if ferr != nil {
			return fmt.Errorf("открытие файла предпочтений: %w", ferr)
		}
		repo = fileRepo
	}
	prefs := service.NewPreferences(repo, 0, logger)

	client, err := listclient.New(watchBackendURL, "", watchTimeout, logger)
	if err != nil {
		return err
	}

	endpoint := watchEndpoint
	if endpoint == "" {
		endpoint = "/api/" + schema.Entity()
	}

	store := service.NewQueryStore(schema, service.StoreOptions{
		Namespace:   watchNamespace,
		Initial:     filter.Decode(filter.ParseQuery(rawQuery(watchURL)), schema, allow),
		Preferences: prefs,
	}, logger)

	ctrl := service.NewRequestController(endpoint, client, service.ControllerOptions{
		Context: cmd.Context(),
	}, logger)
	defer ctrl.Close()

	unsubscribe := ctrl.Subscribe(func(s service.Snapshot) {
		logger.Info("Состояние запроса",
			slog.String("status", string(s.Status)),
			slog.String("query", s.Query),
			slog.Bool("first_load", s.IsFirstLoad),
			slog.Bool("refreshing", s.IsRefreshing),
		)
	})
	defer unsubscribe()

	ctrl.Attach(store)

	if len(set) > 0 {
		decoded := filter.Decode(set, schema, allow)
		store.SetFilters(func(p filter.Partial) filter.Partial {
			for field := range set {
				if v, ok := decoded[field]; ok {
					p[field] = v
				} else {
					delete(p, field)
				}
			}
			return p
		})
	}
	flags := cmd.Flags()
	if flags.Changed("sort") {
		store.SetSort(watchSort)
	}
	if flags.Changed("page-size") {
		store.SetPageSize(watchPageSize)
	}
	if flags.Changed("page") {
		store.SetPage(watchPage)
	}

	ctrl.Wait()
	return writeSnapshot(cmd.OutOrStdout(), schema.Entity(), ctrl.Snapshot())
}

// writeSnapshot печатает состояние контроллера в JSON.
func writeSnapshot(w io.Writer, entity string, snap service.Snapshot) error {
	out := watchOutput{
		Entity:   entity,
		Endpoint: snap.Endpoint,
		Query:    snap.Query,
		Status:   string(snap.Status),
		Total:    snap.Total,
		Data:     snap.Items,
	}
	if out.Data == nil {
		out.Data = []json.RawMessage{}
	}
	if snap.HasData {
		fetchedAt := snap.FetchedAt
		out.FetchedAt = &fetchedAt
	}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
