package listclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Ошибки уровня ответа backend.
var (
	// ErrHTTPStatus — backend вернул статус вне диапазона 2xx.
	ErrHTTPStatus = errors.New("неуспешный HTTP-статус")
	// ErrMalformedResponse — тело успешного ответа не является корректным JSON.
	ErrMalformedResponse = errors.New("некорректный JSON в ответе")
)

// Page — страница результатов списка.
type Page struct {
	// Items — элементы страницы в исходном JSON-представлении
	Items []json.RawMessage `json:"data"`
	// Total — общее количество записей по фильтру
	Total int `json:"total"`
}

// RequestError — описание неуспешного запроса.
type RequestError struct {
	// Status — HTTP-статус ответа (0 — ответ не получен)
	Status int
	// Message — человекочитаемое сообщение
	Message string
	// Err — причина (ErrHTTPStatus, ErrMalformedResponse, сетевая ошибка, context.Canceled)
	Err error
}

// Error реализует интерфейс error.
func (e *RequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

// Unwrap возвращает причину ошибки.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Result — результат запроса: OK со страницей либо Err.
type Result struct {
	OK   bool
	Page Page
	Err  *RequestError
}

// Success создаёт успешный результат.
func Success(items []json.RawMessage, total int) Result {
	if items == nil {
		items = []json.RawMessage{}
	}
	return Result{OK: true, Page: Page{Items: items, Total: total}}
}

func failure(status int, message string, cause error) Result {
	return Result{Err: &RequestError{Status: status, Message: message, Err: cause}}
}

// Normalize превращает HTTP-ответ backend в Result.
//
// 2xx: ожидается JSON-объект с массивом в "data" или "items" и целым "total".
// Любая другая форма корректного JSON считается пустым результатом.
// Некорректный JSON — ошибка ErrMalformedResponse.
//
// Не-2xx: ошибка с HTTP-статусом и сообщением из поля "error" тела
// (строка либо объект {"message": ...}), иначе — общее сообщение.
func Normalize(status int, body []byte) Result {
	if status < 200 || status > 299 {
		msg := extractErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("запрос завершился со статусом %d", status)
		}
		return failure(status, msg, ErrHTTPStatus)
	}

	if !json.Valid(body) {
		return failure(status, "некорректный JSON в ответе backend", ErrMalformedResponse)
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Items json.RawMessage `json:"items"`
		Total json.RawMessage `json:"total"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Корректный JSON, но не объект
		return Success(nil, 0)
	}

	items, ok := decodeItems(envelope.Data)
	if !ok {
		items, ok = decodeItems(envelope.Items)
	}
	if !ok {
		return Success(nil, 0)
	}

	total, ok := decodeTotal(envelope.Total)
	if !ok {
		return Success(nil, 0)
	}

	return Success(items, total)
}

func decodeItems(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	return items, true
}

func decodeTotal(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32*1e3 {
		return 0, false
	}
	return int(f), true
}

// extractErrorMessage достаёт сообщение из {"error": "..."} или
// {"error": {"message": "..."}}.
func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &obj); err == nil {
		return obj.Message
	}
	return ""
}
