package filter

import (
	"slices"
)

// Partial — частично заданные значения фильтров: имя поля → значение.
// Ожидаемые типы значений: string (q, sort, dateFrom, dateTo),
// int (page, pageSize), []int (наборы ID). Значения других типов
// при валидации заменяются значением по умолчанию.
type Partial map[string]any

// Clone возвращает глубокую копию (наборы ID копируются).
func (p Partial) Clone() Partial {
	out := make(Partial, len(p))
	for k, v := range p {
		if ids, ok := v.([]int); ok {
			v = slices.Clone(ids)
		}
		out[k] = v
	}
	return out
}

// State — провалидированное состояние фильтров: значение для каждого поля схемы.
// Создаётся только через Validate, поэтому всегда соответствует схеме.
// Значение State неизменяемо: методы возвращают копии.
type State struct {
	schema *Schema
	values map[string]any
}

// Schema возвращает схему состояния.
func (s State) Schema() *Schema {
	return s.schema
}

// IsZero — состояние не было создано через Validate.
func (s State) IsZero() bool {
	return s.schema == nil
}

// String возвращает значение строкового поля (q, sort, dateFrom, dateTo).
func (s State) String(name string) string {
	v, _ := s.values[name].(string)
	return v
}

// Int возвращает значение целого поля (page, pageSize).
func (s State) Int(name string) int {
	v, _ := s.values[name].(int)
	return v
}

// IDs возвращает копию набора ID (отсортирован по возрастанию, без дублей).
func (s State) IDs(name string) []int {
	v, _ := s.values[name].([]int)
	return slices.Clone(v)
}

// Query возвращает свободный текст поиска.
func (s State) Query() string { return s.String(FieldQuery) }

// Page возвращает номер страницы.
func (s State) Page() int { return s.Int(FieldPage) }

// PageSize возвращает размер страницы.
func (s State) PageSize() int { return s.Int(FieldPageSize) }

// Sort возвращает токен сортировки.
func (s State) Sort() string { return s.String(FieldSort) }

// DateFrom возвращает нижнюю границу диапазона дат.
func (s State) DateFrom() string { return s.String(FieldDateFrom) }

// DateTo возвращает верхнюю границу диапазона дат.
func (s State) DateTo() string { return s.String(FieldDateTo) }

// Values возвращает полную копию значений как Partial.
// Validate(s.Values(), s.Schema()) равно s.
func (s State) Values() Partial {
	out := make(Partial, len(s.values))
	for k, v := range s.values {
		if ids, ok := v.([]int); ok {
			v = slices.Clone(ids)
		}
		out[k] = v
	}
	return out
}

// NonDefault возвращает только поля, отличающиеся от значений по умолчанию.
func (s State) NonDefault() Partial {
	out := make(Partial)
	if s.schema == nil {
		return out
	}
	for _, f := range s.schema.fields {
		v := s.values[f.Name]
		if isDefault(f, v) {
			continue
		}
		if ids, ok := v.([]int); ok {
			v = slices.Clone(ids)
		}
		out[f.Name] = v
	}
	return out
}

// Equal сравнивает два состояния по схеме и значениям.
func (s State) Equal(other State) bool {
	if s.schema != other.schema {
		return false
	}
	if s.schema == nil {
		return true
	}
	for _, f := range s.schema.fields {
		if !valueEqual(f, s.values[f.Name], other.values[f.Name]) {
			return false
		}
	}
	return true
}

// EqualExcept сравнивает состояния, пропуская перечисленные поля.
func (s State) EqualExcept(other State, skip ...string) bool {
	if s.schema != other.schema {
		return false
	}
	if s.schema == nil {
		return true
	}
	for _, f := range s.schema.fields {
		if slices.Contains(skip, f.Name) {
			continue
		}
		if !valueEqual(f, s.values[f.Name], other.values[f.Name]) {
			return false
		}
	}
	return true
}

// With возвращает новое состояние с заменённым значением поля.
// Значение проходит ту же валидацию, что и в Validate.
func (s State) With(name string, value any) State {
	if s.schema == nil {
		return s
	}
	vals := s.Values()
	vals[name] = value
	return Validate(vals, s.schema)
}

func valueEqual(f Field, a, b any) bool {
	if f.Kind == KindIDSet {
		ai, _ := a.([]int)
		bi, _ := b.([]int)
		return slices.Equal(ai, bi)
	}
	return a == b
}

// isDefault — значение совпадает с умолчанием поля или пустое.
func isDefault(f Field, v any) bool {
	switch f.Kind {
	case KindIDSet:
		ids, _ := v.([]int)
		return len(ids) == 0
	case KindPositiveInt:
		n, ok := v.(int)
		def, _ := f.Default.(int)
		return !ok || n == def
	default:
		str, _ := v.(string)
		def, _ := f.Default.(string)
		return str == "" || str == def
	}
}
