package filter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestRegistry_Get проверяет схемы сущностей Admin Dashboard.
func TestRegistry_Get(t *testing.T) {
	tests := []struct {
		entity string
		idSets []string
	}{
		{EntityStaff, []string{FieldStatusIDs, FieldRoleIDs}},
		{EntityProperties, []string{FieldStatusIDs, FieldServiceIDs, FieldStaffIDs}},
		{EntityAppointments, []string{FieldStatusIDs, FieldServiceIDs, FieldStaffIDs, FieldPropertyIDs}},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			s, err := DefaultRegistry().Get(tt.entity)
			if err != nil {
				t.Fatalf("Get(%q): %v", tt.entity, err)
			}
			if s.Entity() != tt.entity {
				t.Errorf("Entity = %q, ожидалось %q", s.Entity(), tt.entity)
			}
			if diff := cmp.Diff(tt.idSets, s.IDSetFields()); diff != "" {
				t.Errorf("наборы ID (-want +got):\n%s", diff)
			}
		})
	}
}

// TestRegistry_UnknownEntity — неизвестная сущность возвращает ErrUnknownEntity.
func TestRegistry_UnknownEntity(t *testing.T) {
	_, err := DefaultRegistry().Get("invoices")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("ошибка = %v, ожидалась ErrUnknownEntity", err)
	}
}

// TestSchema_BaselineOrder — базовые поля идут первыми в каноническом порядке.
func TestSchema_BaselineOrder(t *testing.T) {
	s := NewSchema("custom", nil, "zIds", FieldPage, "aIds", "zIds", "")

	var names []string
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	want := []string{FieldQuery, FieldPage, FieldPageSize, FieldSort, FieldDateFrom, FieldDateTo, "zIds", "aIds"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("порядок полей (-want +got):\n%s", diff)
	}

	f, ok := s.Field(FieldPageSize)
	if !ok || f.Kind != KindPositiveInt || f.Default != DefaultPageSize {
		t.Errorf("pageSize = %+v, ok=%v", f, ok)
	}
	if s.Has("unknown") {
		t.Error("Has(unknown) = true, ожидалось false")
	}
}

// TestRegistry_Entities — список сущностей отсортирован.
func TestRegistry_Entities(t *testing.T) {
	want := []string{EntityAppointments, EntityProperties, EntityStaff}
	if diff := cmp.Diff(want, DefaultRegistry().Entities()); diff != "" {
		t.Errorf("Entities (-want +got):\n%s", diff)
	}
}

// TestState_WithAndNonDefault проверяет неизменяемость State.
func TestState_WithAndNonDefault(t *testing.T) {
	s := NewSchema("custom", nil, FieldStatusIDs)

	base := Validate(Partial{FieldStatusIDs: []int{3, 1}}, s)
	next := base.With(FieldPage, 4)

	if base.Page() != DefaultPage {
		t.Errorf("исходное состояние изменено: page = %d", base.Page())
	}
	if next.Page() != 4 {
		t.Errorf("Page = %d, ожидался 4", next.Page())
	}
	if !base.EqualExcept(next, FieldPage) {
		t.Error("EqualExcept(page) = false, ожидалось true")
	}
	if base.Equal(next) {
		t.Error("Equal = true, ожидалось false")
	}

	ids := next.IDs(FieldStatusIDs)
	ids[0] = 100
	if next.IDs(FieldStatusIDs)[0] != 1 {
		t.Error("IDs вернул не копию")
	}

	want := Partial{FieldPage: 4, FieldStatusIDs: []int{1, 3}}
	if diff := cmp.Diff(want, next.NonDefault()); diff != "" {
		t.Errorf("NonDefault (-want +got):\n%s", diff)
	}
}
