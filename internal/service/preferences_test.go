package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amitch35/AcornArranger-next-sub000/internal/repository"
)

// mockPreferenceRepo — мок repository.PreferenceRepository.
type mockPreferenceRepo struct {
	getFn    func(ctx context.Context, key string) (*repository.Preference, error)
	setFn    func(ctx context.Context, key, value string) error
	listFn   func(ctx context.Context, prefix string) ([]repository.Preference, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockPreferenceRepo) Get(ctx context.Context, key string) (*repository.Preference, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, repository.ErrNotFound
}

func (m *mockPreferenceRepo) Set(ctx context.Context, key, value string) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockPreferenceRepo) ListByPrefix(ctx context.Context, prefix string) ([]repository.Preference, error) {
	if m.listFn != nil {
		return m.listFn(ctx, prefix)
	}
	return nil, nil
}

func (m *mockPreferenceRepo) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

var errStorageDown = errors.New("хранилище недоступно")

func TestPreferences_GetSetRoundTrip(t *testing.T) {
	prefs := NewPreferences(repository.NewMemoryPreferenceRepository(), 0, discardLogger())
	ctx := context.Background()

	if _, ok := prefs.Get(ctx, "list:staff", "pageSize"); ok {
		t.Fatal("ожидалось отсутствие значения")
	}

	prefs.Set(ctx, "list:staff", "pageSize", "100")
	got, ok := prefs.Get(ctx, "list:staff", "pageSize")
	if !ok || got != "100" {
		t.Errorf("Get = %q, %v; ожидалось \"100\", true", got, ok)
	}

	// Другое пространство имён не видит значение
	if _, ok := prefs.Get(ctx, "list:properties", "pageSize"); ok {
		t.Error("значение видно из другого пространства имён")
	}
}

// TestPreferences_ErrorsSwallowed — сбой хранилища равен отсутствию значения.
func TestPreferences_ErrorsSwallowed(t *testing.T) {
	var setCalled bool
	repo := &mockPreferenceRepo{
		getFn: func(context.Context, string) (*repository.Preference, error) {
			return nil, errStorageDown
		},
		setFn: func(context.Context, string, string) error {
			setCalled = true
			return errStorageDown
		},
	}
	prefs := NewPreferences(repo, 0, discardLogger())

	if v, ok := prefs.Get(context.Background(), "ns", "pageSize"); ok || v != "" {
		t.Errorf("Get = %q, %v; ожидалось отсутствие значения", v, ok)
	}
	prefs.Set(context.Background(), "ns", "pageSize", "50")
	if !setCalled {
		t.Error("Set не обратился к хранилищу")
	}

	// Хранилище фильтров продолжает работать при сбоях предпочтений
	store := NewQueryStore(propertiesSchema(t), StoreOptions{Namespace: "ns", Preferences: prefs}, discardLogger())
	store.SetPageSize(50)
	if store.State().PageSize() != 50 {
		t.Errorf("PageSize = %d, ожидался 50", store.State().PageSize())
	}
}

func TestPreferences_Timeout(t *testing.T) {
	repo := &mockPreferenceRepo{
		getFn: func(ctx context.Context, _ string) (*repository.Preference, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	prefs := NewPreferences(repo, 10*time.Millisecond, discardLogger())

	_, err := prefs.Lookup(context.Background(), "ns", "pageSize")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ошибка = %v, ожидался DeadlineExceeded", err)
	}
}

func TestPreferences_LookupClearNotFound(t *testing.T) {
	prefs := NewPreferences(repository.NewMemoryPreferenceRepository(), 0, discardLogger())
	ctx := context.Background()

	if _, err := prefs.Lookup(ctx, "ns", "pageSize"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup ошибка = %v, ожидался ErrNotFound", err)
	}
	if err := prefs.Clear(ctx, "ns", "pageSize"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Clear ошибка = %v, ожидался ErrNotFound", err)
	}

	if err := prefs.Store(ctx, "ns", "pageSize", "10"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := prefs.Clear(ctx, "ns", "pageSize"); err != nil {
		t.Errorf("Clear: %v", err)
	}
	if _, ok := prefs.Get(ctx, "ns", "pageSize"); ok {
		t.Error("значение осталось после Clear")
	}
}

func TestPreferences_List(t *testing.T) {
	prefs := NewPreferences(repository.NewMemoryPreferenceRepository(), 0, discardLogger())
	ctx := context.Background()

	for key, value := range map[string][2]string{
		"a": {"list:staff", "pageSize"},
		"b": {"list:staff", "sort"},
		"c": {"list:staff:archived", "pageSize"},
		"d": {"list:properties", "pageSize"},
	} {
		if err := prefs.Store(ctx, value[0], value[1], key); err != nil {
			t.Fatalf("Store(%v): %v", value, err)
		}
	}

	got, err := prefs.List(ctx, "list:staff")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List вернул %d записей, ожидалось 2: %v", len(got), got)
	}
	if got["pageSize"].Value != "a" || got["sort"].Value != "b" {
		t.Errorf("List = %v", got)
	}

	if _, err := prefs.List(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("List(\"\") ошибка = %v, ожидался ErrValidation", err)
	}
}

func TestPreferences_ValidateKey(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		field     string
		wantErr   bool
	}{
		{"корректный ключ", "list:staff", "pageSize", false},
		{"пустое пространство", "", "pageSize", true},
		{"пустое поле", "list:staff", "", true},
		{"двоеточие в поле", "list", "staff:pageSize", true},
	}

	prefs := NewPreferences(repository.NewMemoryPreferenceRepository(), 0, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := prefs.Store(context.Background(), tt.namespace, tt.field, "1")
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("ошибка = %v, ожидался ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("неожиданная ошибка: %v", err)
			}
		})
	}
}
