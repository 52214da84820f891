// Пакет request — конечный автомат жизненного цикла запроса списка.
//
// Состояния: idle → fetching → {success | error}.
// fetching реентерабелен: новый запрос отменяет предыдущий и остаётся в fetching.
// Отмена (cancel) возвращает статус, бывший до запроса.
// Переход в success без запроса — выдача свежего ответа из кэша.
package request

import "fmt"

// Status — статус запроса представления.
type Status string

const (
	// StatusIdle — запросов ещё не было
	StatusIdle Status = "idle"
	// StatusFetching — запрос выполняется
	StatusFetching Status = "fetching"
	// StatusSuccess — данные получены (из сети или кэша)
	StatusSuccess Status = "success"
	// StatusError — последний запрос завершился ошибкой
	StatusError Status = "error"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[Status]map[Status]bool{
	StatusIdle:     {StatusFetching: true, StatusSuccess: true},
	StatusFetching: {StatusFetching: true, StatusSuccess: true, StatusError: true, StatusIdle: true},
	StatusSuccess:  {StatusFetching: true, StatusSuccess: true},
	StatusError:    {StatusFetching: true, StatusSuccess: true},
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// TransitionError — недопустимый переход.
type TransitionError struct {
	From Status
	To   Status
}

// Error реализует интерфейс error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("переход %s → %s недопустим", e.From, e.To)
}

// Transition возвращает to или TransitionError.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}
