// main.go — точка входа Acorn Dashboard.
// Команды: serve (HTTP-сервис), canon (каноникализация query), watch
// (запрос списка через хранилище фильтров и контроллер запросов).
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
