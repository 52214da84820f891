// mirror.go — односторонняя синхронизация query string в адресную строку.
// Заменяет текущую запись истории (replace), новые записи не создаются.
package service

import "strings"

// HistoryReplacer заменяет query-часть текущего адреса представления.
type HistoryReplacer interface {
	ReplaceQuery(query string)
}

// HistoryReplacerFunc — адаптер функции к HistoryReplacer.
type HistoryReplacerFunc func(query string)

// ReplaceQuery вызывает f.
func (f HistoryReplacerFunc) ReplaceQuery(query string) {
	f(query)
}

// MirrorToURL подписывает replacer на изменения query string хранилища.
// current — query-часть адреса на момент монтирования (с '?' или без): если она не совпадает
// с канонической, адрес сразу приводится к канонической форме.
// Возвращает функцию остановки зеркалирования.
func MirrorToURL(store *QueryStore, replacer HistoryReplacer, current string) (stop func()) {
	stop = store.Subscribe(replacer.ReplaceQuery)
	if q := store.Query(); q != strings.TrimPrefix(current, "?") {
		replacer.ReplaceQuery(q)
	}
	return stop
}
