package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/request"
	"github.com/amitch35/AcornArranger-next-sub000/internal/listclient"
)

const testEndpoint = "/api/properties"

// fakeFetcher отвечает на запрос только после respond(query, ...).
// ignoreCancel=true имитирует транспорт, который не прерывает запрос при отмене.
type fakeFetcher struct {
	mu           sync.Mutex
	calls        []string
	gates        map[string]chan listclient.Result
	ignoreCancel bool
}

func newFakeFetcher(ignoreCancel bool) *fakeFetcher {
	return &fakeFetcher{gates: map[string]chan listclient.Result{}, ignoreCancel: ignoreCancel}
}

func (f *fakeFetcher) gateLocked(query string) chan listclient.Result {
	ch, ok := f.gates[query]
	if !ok {
		ch = make(chan listclient.Result, 4)
		f.gates[query] = ch
	}
	return ch
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string, query string) listclient.Result {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	ch := f.gateLocked(query)
	f.mu.Unlock()

	if f.ignoreCancel {
		return <-ch
	}
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		return listclient.Result{Err: &listclient.RequestError{Message: "запрос отменён", Err: ctx.Err()}}
	}
}

func (f *fakeFetcher) respond(query string, res listclient.Result) {
	f.mu.Lock()
	ch := f.gateLocked(query)
	f.mu.Unlock()
	ch <- res
}

func (f *fakeFetcher) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) waitCalls(t *testing.T, n int) {
	t.Helper()
	waitFor(t, func() bool { return len(f.callList()) >= n })
}

// fakeClock — управляемое время для проверки свежести кэша.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// waitFor ожидает выполнения условия не дольше 2 секунд.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("условие не выполнено за 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitStatus(t *testing.T, ctrl *RequestController, status request.Status) Snapshot {
	t.Helper()
	waitFor(t, func() bool { return ctrl.Snapshot().Status == status })
	return ctrl.Snapshot()
}

func newTestController(t *testing.T, f Fetcher, cache *ResponseCache) *RequestController {
	t.Helper()
	ctrl := NewRequestController(testEndpoint, f, ControllerOptions{Cache: cache}, discardLogger())
	t.Cleanup(ctrl.Close)
	return ctrl
}

func successOf(page listclient.Page) listclient.Result {
	return listclient.Success(page.Items, page.Total)
}

// TestRequestController_StaleResponseSuppressed — ответ A, пришедший после B, отбрасывается.
func TestRequestController_StaleResponseSuppressed(t *testing.T) {
	f := newFakeFetcher(true)
	cache := NewResponseCache(10, time.Hour)
	ctrl := newTestController(t, f, cache)

	ctrl.Observe("page=1")
	ctrl.Observe("page=2")
	f.waitCalls(t, 2)

	f.respond("page=2", successOf(testPage(2, "b1", "b2")))
	waitStatus(t, ctrl, request.StatusSuccess)

	f.respond("page=1", successOf(testPage(9, "a")))
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Query != "page=2" {
		t.Errorf("Query = %q, ожидалось page=2", snap.Query)
	}
	if snap.Total != 2 || len(snap.Items) != 2 {
		t.Errorf("данные = %d/%d, ожидались данные ответа B", snap.Total, len(snap.Items))
	}
	if _, ok := cache.Peek(CacheKey(testEndpoint, "page=1")); ok {
		t.Error("устаревший ответ A попал в кэш")
	}
}

// TestRequestController_CancelDoesNotSucceed — отменённый запрос не переводит в success.
func TestRequestController_CancelDoesNotSucceed(t *testing.T) {
	f := newFakeFetcher(true)
	ctrl := newTestController(t, f, nil)

	ctrl.Observe("q=pool")
	f.waitCalls(t, 1)
	if ctrl.Snapshot().Status != request.StatusFetching {
		t.Fatalf("Status = %s, ожидался fetching", ctrl.Snapshot().Status)
	}

	ctrl.Cancel()
	if got := ctrl.Snapshot().Status; got != request.StatusIdle {
		t.Errorf("Status после Cancel = %s, ожидался idle", got)
	}

	f.respond("q=pool", successOf(testPage(1, "x")))
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Status == request.StatusSuccess {
		t.Error("отменённый запрос перевёл контроллер в success")
	}
	if snap.HasData {
		t.Error("данные отменённого запроса не должны быть видны")
	}

	// Повторная отмена без активного запроса — no-op
	ctrl.Cancel()
	if got := ctrl.Snapshot().Status; got != request.StatusIdle {
		t.Errorf("Status = %s, ожидался idle", got)
	}
}

// TestRequestController_CancelAfterOtherQuerySucceeded — success для A не переносится на отменённую B.
func TestRequestController_CancelAfterOtherQuerySucceeded(t *testing.T) {
	f := newFakeFetcher(true)
	ctrl := newTestController(t, f, NewResponseCache(10, time.Hour))

	ctrl.Observe("page=1")
	f.respond("page=1", successOf(testPage(1, "a")))
	waitStatus(t, ctrl, request.StatusSuccess)

	ctrl.Observe("page=2")
	f.waitCalls(t, 2)
	ctrl.Cancel()

	f.respond("page=2", successOf(testPage(1, "b")))
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Query != "page=2" {
		t.Errorf("Query = %q, ожидалось page=2", snap.Query)
	}
	if snap.Status != request.StatusIdle {
		t.Errorf("Status = %s, ожидался idle", snap.Status)
	}
	if snap.HasData {
		t.Error("данные отменённого запроса не должны быть видны")
	}
	if snap.Previous == nil || snap.PreviousQuery != "page=1" {
		t.Errorf("Previous = %v (%q), ожидались данные page=1", snap.Previous, snap.PreviousQuery)
	}
}

// TestRequestController_CancelRefetchKeepsSuccess — отмена повторного запроса той же query возвращает success.
func TestRequestController_CancelRefetchKeepsSuccess(t *testing.T) {
	f := newFakeFetcher(false)
	ctrl := newTestController(t, f, NewResponseCache(10, time.Hour))

	ctrl.Observe("page=1")
	f.respond("page=1", successOf(testPage(1, "a")))
	waitStatus(t, ctrl, request.StatusSuccess)

	ctrl.Retry()
	f.waitCalls(t, 2)
	ctrl.Cancel()
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Status != request.StatusSuccess || !snap.HasData {
		t.Errorf("Status = %s HasData = %v, ожидался success с данными", snap.Status, snap.HasData)
	}
}

// TestRequestController_CancelAbortsTransport — отмена прерывает запрос через ctx.
func TestRequestController_CancelAbortsTransport(t *testing.T) {
	f := newFakeFetcher(false)
	ctrl := newTestController(t, f, nil)

	ctrl.Observe("page=3")
	f.waitCalls(t, 1)
	ctrl.Cancel()
	ctrl.Wait()

	if got := ctrl.Snapshot().Status; got != request.StatusIdle {
		t.Errorf("Status = %s, ожидался idle", got)
	}
}

// TestRequestController_FreshCacheReuse — свежий ответ выдаётся без повторного запроса.
func TestRequestController_FreshCacheReuse(t *testing.T) {
	f := newFakeFetcher(false)
	ctrl := newTestController(t, f, NewResponseCache(10, time.Hour))

	ctrl.Observe("page=1")
	f.respond("page=1", successOf(testPage(1, "a")))
	waitStatus(t, ctrl, request.StatusSuccess)

	ctrl.Observe("page=2")
	f.respond("page=2", successOf(testPage(1, "b")))
	waitFor(t, func() bool {
		s := ctrl.Snapshot()
		return s.Query == "page=2" && s.Status == request.StatusSuccess
	})

	ctrl.Observe("page=1")
	snap := ctrl.Snapshot()
	if snap.Status != request.StatusSuccess {
		t.Errorf("Status = %s, ожидался success из кэша", snap.Status)
	}
	if !snap.HasData || snap.Stale {
		t.Errorf("HasData=%v Stale=%v, ожидались свежие данные", snap.HasData, snap.Stale)
	}
	ctrl.Wait()

	if diff := cmp.Diff([]string{"page=1", "page=2"}, f.callList()); diff != "" {
		t.Errorf("запросы (-want +got):\n%s", diff)
	}
}

// TestRequestController_StaleCacheRefetch — устаревший ответ показывается, запрос повторяется.
func TestRequestController_StaleCacheRefetch(t *testing.T) {
	f := newFakeFetcher(false)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewResponseCache(10, time.Hour)
	cache.now = clock.Now
	ctrl := newTestController(t, f, cache)

	ctrl.Observe("page=1")
	f.respond("page=1", successOf(testPage(1, "a")))
	waitStatus(t, ctrl, request.StatusSuccess)

	ctrl.Observe("page=2")
	f.respond("page=2", successOf(testPage(1, "b")))
	waitFor(t, func() bool {
		s := ctrl.Snapshot()
		return s.Query == "page=2" && s.Status == request.StatusSuccess
	})

	clock.Advance(DefaultStaleAfter + time.Second)
	ctrl.Observe("page=1")

	snap := ctrl.Snapshot()
	if snap.Status != request.StatusFetching {
		t.Errorf("Status = %s, ожидался fetching", snap.Status)
	}
	if !snap.HasData || !snap.Stale || !snap.IsRefreshing || snap.IsFirstLoad {
		t.Errorf("HasData=%v Stale=%v IsRefreshing=%v IsFirstLoad=%v",
			snap.HasData, snap.Stale, snap.IsRefreshing, snap.IsFirstLoad)
	}

	f.respond("page=1", successOf(testPage(2, "a", "a2")))
	snap = waitStatus(t, ctrl, request.StatusSuccess)
	if snap.Total != 2 || snap.Stale {
		t.Errorf("Total=%d Stale=%v, ожидались обновлённые данные", snap.Total, snap.Stale)
	}
	f.waitCalls(t, 3)
}

// TestRequestController_ErrorKeepsPrevious — ошибка не стирает ранее полученные данные.
func TestRequestController_ErrorKeepsPrevious(t *testing.T) {
	f := newFakeFetcher(false)
	cache := NewResponseCache(10, time.Hour)
	ctrl := newTestController(t, f, cache)

	ctrl.Observe("page=1")
	f.respond("page=1", successOf(testPage(1, "a")))
	waitStatus(t, ctrl, request.StatusSuccess)

	ctrl.Observe("page=2")
	f.respond("page=2", listclient.Normalize(http.StatusInternalServerError, []byte(`{"error":"boom"}`)))
	snap := waitStatus(t, ctrl, request.StatusError)

	if snap.Err == nil || snap.Err.Status != http.StatusInternalServerError {
		t.Fatalf("Err = %v, ожидалась ошибка HTTP 500", snap.Err)
	}
	if snap.Err.Message != "boom" {
		t.Errorf("Message = %q, ожидалось boom", snap.Err.Message)
	}
	if snap.HasData {
		t.Error("для page=2 данных быть не должно")
	}
	if snap.Previous == nil || snap.PreviousQuery != "page=1" {
		t.Errorf("Previous = %v (%q), ожидались данные page=1", snap.Previous, snap.PreviousQuery)
	}
	if _, ok := cache.Peek(CacheKey(testEndpoint, "page=1")); !ok {
		t.Error("кэш page=1 потерян после ошибки")
	}
}

// TestRequestController_RetryIgnoresFreshness — Retry запрашивает заново при свежем кэше.
func TestRequestController_RetryIgnoresFreshness(t *testing.T) {
	f := newFakeFetcher(false)
	ctrl := newTestController(t, f, nil)

	// Retry до первой query — no-op
	ctrl.Retry()
	if ctrl.Snapshot().Status != request.StatusIdle {
		t.Fatalf("Status = %s, ожидался idle", ctrl.Snapshot().Status)
	}

	ctrl.Observe("")
	f.respond("", successOf(testPage(1, "a")))
	waitStatus(t, ctrl, request.StatusSuccess)

	ctrl.Retry()
	snap := ctrl.Snapshot()
	if !snap.IsRefreshing {
		t.Error("ожидался IsRefreshing при повторе с данными")
	}

	f.respond("", successOf(testPage(5, "a")))
	waitFor(t, func() bool { return ctrl.Snapshot().Total == 5 })
	f.waitCalls(t, 2)
}

// TestRequestController_FirstLoad — первый запрос без данных отмечается как IsFirstLoad.
func TestRequestController_FirstLoad(t *testing.T) {
	f := newFakeFetcher(false)
	ctrl := newTestController(t, f, nil)

	ctrl.Observe("sort=name")
	snap := ctrl.Snapshot()
	if !snap.IsFirstLoad || snap.IsRefreshing {
		t.Errorf("IsFirstLoad=%v IsRefreshing=%v", snap.IsFirstLoad, snap.IsRefreshing)
	}
	if snap.RequestID == "" {
		t.Error("ожидался RequestID активного запроса")
	}

	// Повтор query активного запроса не порождает новый запрос
	ctrl.Observe("sort=name")
	f.respond("sort=name", successOf(testPage(0)))
	snap = waitStatus(t, ctrl, request.StatusSuccess)
	if !snap.HasData || snap.Total != 0 || snap.RequestID != "" {
		t.Errorf("HasData=%v Total=%d RequestID=%q", snap.HasData, snap.Total, snap.RequestID)
	}
	if got := len(f.callList()); got != 1 {
		t.Errorf("запросов = %d, ожидался 1", got)
	}
}

// TestRequestController_AttachFollowsStore — контроллер следует за query string хранилища.
func TestRequestController_AttachFollowsStore(t *testing.T) {
	f := newFakeFetcher(false)
	ctrl := newTestController(t, f, nil)
	store := NewQueryStore(propertiesSchema(t), StoreOptions{}, discardLogger())

	var mu sync.Mutex
	var statuses []request.Status
	unsubscribe := ctrl.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s.Status)
	})
	defer unsubscribe()

	ctrl.Attach(store)
	store.SetPage(2)
	store.SetField("statusIds", []int{1})

	f.respond("statusIds=1", successOf(testPage(1, "a")))
	snap := waitStatus(t, ctrl, request.StatusSuccess)
	if snap.Query != "statusIds=1" {
		t.Errorf("Query = %q, ожидалось statusIds=1", snap.Query)
	}
	ctrl.Wait()

	// Порядок вызовов вытесненных запросов не определён
	sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff([]string{"", "page=2", "statusIds=1"}, f.callList(), sorted); diff != "" {
		t.Errorf("запросы (-want +got):\n%s", diff)
	}

	mu.Lock()
	last := statuses[len(statuses)-1]
	mu.Unlock()
	if last != request.StatusSuccess {
		t.Errorf("последний статус = %s, ожидался success", last)
	}

	// После Close изменения хранилища игнорируются
	ctrl.Close()
	store.SetPage(5)
	if got := len(f.callList()); got != 3 {
		t.Errorf("запросов после Close = %d, ожидалось 3", got)
	}
}

// TestRequestController_ParentContext — отмена родительского контекста прерывает запрос.
func TestRequestController_ParentContext(t *testing.T) {
	f := newFakeFetcher(false)
	parent, cancel := context.WithCancel(context.Background())
	ctrl := NewRequestController(testEndpoint, f, ControllerOptions{Context: parent}, discardLogger())
	t.Cleanup(ctrl.Close)

	ctrl.Observe("page=2")
	f.waitCalls(t, 1)
	cancel()
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Status != request.StatusError {
		t.Fatalf("Status = %s, ожидался error", snap.Status)
	}
	if !errors.Is(snap.Err, context.Canceled) {
		t.Errorf("Err = %v, ожидался context.Canceled", snap.Err)
	}
}
