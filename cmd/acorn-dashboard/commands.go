// commands.go — определения команд cobra и их флагов.
package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/amitch35/AcornArranger-next-sub000/internal/config"
)

// --- Флаги команд ---
var (
	entity    string
	allowList []string
	asJSON    bool

	watchEndpoint   string
	watchBackendURL string
	watchURL        string
	watchNamespace  string
	watchSet        []string
	watchSort       string
	watchPageSize   int
	watchPage       int
	watchPrefsFile  string
	watchTimeout    time.Duration
	verbose         bool

	rootCmd = &cobra.Command{
		Use:           "acorn-dashboard",
		Short:         "Синхронизация фильтров и запросов списков Acorn Dashboard",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Запуск HTTP-сервиса (конфигурация из переменных окружения AD_*)",
		Args:  cobra.NoArgs,
		RunE:  runServe, // cmd_serve.go
	}

	canonCmd = &cobra.Command{
		Use:   "canon [query]",
		Short: "Привести query string представления к канонической форме",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCanon, // cmd_canon.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Применить изменения фильтров и запросить страницу списка у backend",
		Args:  cobra.NoArgs,
		RunE:  runWatch, // cmd_watch.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&entity, "entity", "e", "", "сущность представления (staff, properties, appointments)")
	rootCmd.PersistentFlags().StringArrayVar(&allowList, "allow", nil, "ограничение набора ID: field=1,2,3 (повторяемый)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный лог в stderr")

	canonCmd.Flags().BoolVar(&asJSON, "json", false, "вывести JSON с нестандартными значениями фильтров")

	watchCmd.Flags().StringVar(&watchEndpoint, "endpoint", "", "endpoint списка (по умолчанию /api/<entity>)")
	watchCmd.Flags().StringVar(&watchBackendURL, "backend-url", "http://localhost:3000", "базовый URL backend списков")
	watchCmd.Flags().StringVar(&watchURL, "url", "", "адрес или query string представления на момент открытия")
	watchCmd.Flags().StringVar(&watchNamespace, "namespace", "", "пространство имён предпочтений (пусто — без сохранения)")
	watchCmd.Flags().StringArrayVar(&watchSet, "set", nil, "изменить поле: field=value (повторяемый, пустое значение сбрасывает)")
	watchCmd.Flags().StringVar(&watchSort, "sort", "", "токен сортировки")
	watchCmd.Flags().IntVar(&watchPageSize, "page-size", 0, "размер страницы")
	watchCmd.Flags().IntVar(&watchPage, "page", 0, "номер страницы")
	watchCmd.Flags().StringVar(&watchPrefsFile, "prefs-file", "", "JSON-файл предпочтений (пусто — в памяти)")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 30*time.Second, "таймаут запроса к backend")

	rootCmd.AddCommand(serveCmd, canonCmd, watchCmd)
}
