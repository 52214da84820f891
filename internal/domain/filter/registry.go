package filter

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownEntity — схема для запрошенного типа сущности не зарегистрирована.
var ErrUnknownEntity = errors.New("неизвестный тип сущности")

// Типы сущностей Admin Dashboard.
const (
	EntityStaff        = "staff"
	EntityProperties   = "properties"
	EntityAppointments = "appointments"
)

// Имена полей-наборов ID.
const (
	FieldStatusIDs   = "statusIds"
	FieldRoleIDs     = "roleIds"
	FieldServiceIDs  = "serviceIds"
	FieldStaffIDs    = "staffIds"
	FieldPropertyIDs = "propertyIds"
)

// Registry — реестр схем фильтров по типу сущности.
// После создания не изменяется и безопасен для конкурентного чтения.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry создаёт реестр из набора схем.
// При совпадении типа сущности побеждает последняя схема.
func NewRegistry(schemas ...*Schema) *Registry {
	m := make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		if s == nil {
			continue
		}
		m[s.Entity()] = s
	}
	return &Registry{schemas: m}
}

// defaultRegistry — схемы списков Admin Dashboard.
var defaultRegistry = NewRegistry(
	NewSchema(EntityStaff, nil, FieldStatusIDs, FieldRoleIDs),
	NewSchema(EntityProperties, nil, FieldStatusIDs, FieldServiceIDs, FieldStaffIDs),
	NewSchema(EntityAppointments, nil, FieldStatusIDs, FieldServiceIDs, FieldStaffIDs, FieldPropertyIDs),
)

// DefaultRegistry возвращает реестр со схемами staff, properties, appointments.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Get возвращает схему для типа сущности или ErrUnknownEntity.
func (r *Registry) Get(entity string) (*Schema, error) {
	s, ok := r.schemas[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return s, nil
}

// MustGet возвращает схему или паникует. Только для статически известных сущностей.
func (r *Registry) MustGet(entity string) *Schema {
	s, err := r.Get(entity)
	if err != nil {
		panic(err)
	}
	return s
}

// Entities возвращает отсортированный список зарегистрированных сущностей.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
