// Пакет filter — схемы фильтров списков Admin Dashboard (сотрудники, объекты,
// визиты), провалидированное состояние фильтров и канонический кодек query string.
//
// Кодек — единственный источник истины для имён полей, их порядка и правил
// приведения типов. Query string вне этого пакета вручную не собирается.
package filter

import "math"

// FieldKind — тип поля фильтра.
type FieldKind int

const (
	// KindString — свободный текст (q).
	KindString FieldKind = iota
	// KindPositiveInt — целое число в диапазоне [Min, Max] (page, pageSize).
	KindPositiveInt
	// KindIDSet — набор положительных целых идентификаторов (statusIds и т.п.).
	KindIDSet
	// KindDateTime — дата или дата-время ISO-8601 (dateFrom, dateTo).
	KindDateTime
	// KindSortToken — токен сортировки (непрозрачный или из перечисления).
	KindSortToken
)

// String возвращает человекочитаемое имя типа поля.
func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindPositiveInt:
		return "positive-int"
	case KindIDSet:
		return "id-set"
	case KindDateTime:
		return "datetime"
	case KindSortToken:
		return "sort-token"
	default:
		return "unknown"
	}
}

// Границы допустимых целых значений (32-битный знаковый диапазон БД).
const (
	MinID = 1
	MaxID = math.MaxInt32
)

// Имена базовых полей, присутствующих в каждой схеме.
const (
	FieldQuery    = "q"
	FieldPage     = "page"
	FieldPageSize = "pageSize"
	FieldSort     = "sort"
	FieldDateFrom = "dateFrom"
	FieldDateTo   = "dateTo"
)

// Значения по умолчанию для пагинации.
const (
	DefaultPage     = 1
	DefaultPageSize = 25
)

// Field — описание одного поля схемы.
type Field struct {
	// Name — имя параметра в query string
	Name string
	// Kind — тип поля
	Kind FieldKind
	// Default — значение по умолчанию: string для строк, дат и сортировки,
	// int для целых, nil для наборов ID
	Default any
	// Min, Max — допустимый диапазон для KindPositiveInt
	Min, Max int
	// Enum — допустимые токены для KindSortToken (пусто — токен непрозрачный)
	Enum []string
}

// Schema — неизменяемое описание фильтров одной сущности.
// Порядок полей совпадает с каноническим порядком сериализации:
// базовые поля, затем наборы ID в порядке объявления.
type Schema struct {
	entity string
	fields []Field
	index  map[string]int
}

// baselineFields возвращает базовые поля в каноническом порядке.
func baselineFields(sortTokens []string) []Field {
	return []Field{
		{Name: FieldQuery, Kind: KindString, Default: ""},
		{Name: FieldPage, Kind: KindPositiveInt, Default: DefaultPage, Min: 1, Max: MaxID},
		{Name: FieldPageSize, Kind: KindPositiveInt, Default: DefaultPageSize, Min: 1, Max: MaxID},
		{Name: FieldSort, Kind: KindSortToken, Default: "", Enum: sortTokens},
		{Name: FieldDateFrom, Kind: KindDateTime, Default: ""},
		{Name: FieldDateTo, Kind: KindDateTime, Default: ""},
	}
}

// NewSchema создаёт схему сущности: базовые поля + наборы ID.
// sortTokens — допустимые значения sort (nil — любой непустой токен).
// idSets — имена полей-наборов ID в каноническом порядке.
// Повторяющиеся имена и имена базовых полей в idSets игнорируются.
func NewSchema(entity string, sortTokens []string, idSets ...string) *Schema {
	tokens := append([]string(nil), sortTokens...)
	fields := baselineFields(tokens)

	index := make(map[string]int, len(fields)+len(idSets))
	for i, f := range fields {
		index[f.Name] = i
	}
	for _, name := range idSets {
		if name == "" {
			continue
		}
		if _, exists := index[name]; exists {
			continue
		}
		index[name] = len(fields)
		fields = append(fields, Field{Name: name, Kind: KindIDSet})
	}

	return &Schema{entity: entity, fields: fields, index: index}
}

// Entity возвращает тип сущности схемы.
func (s *Schema) Entity() string {
	return s.entity
}

// Fields возвращает копию полей в каноническом порядке.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field возвращает описание поля по имени.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has проверяет, известно ли поле схеме.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// IDSetFields возвращает имена полей-наборов ID в каноническом порядке.
func (s *Schema) IDSetFields() []string {
	var names []string
	for _, f := range s.fields {
		if f.Kind == KindIDSet {
			names = append(names, f.Name)
		}
	}
	return names
}
