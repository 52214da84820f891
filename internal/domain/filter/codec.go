// codec.go — канонический кодек фильтров: Decode (query string → Partial),
// Validate (Partial → State) и Encode (State → каноническая query string).
// Ни одна из операций не возвращает ошибок: некорректный ввод заменяется
// значением по умолчанию или отбрасывается.
package filter

import (
	"math"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Allowlists — допустимые значения для полей-наборов ID: имя поля → разрешённые ID.
// Поле без записи не ограничивается.
type Allowlists map[string][]int

// CanonicalTimeLayout — формат сериализации полных меток времени (UTC, миллисекунды).
const CanonicalTimeLayout = "2006-01-02T15:04:05.000Z"

const dateOnlyLayout = "2006-01-02"

var dateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Форматы меток времени без часового пояса (интерпретируются как UTC).
var localTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseQuery разбирает сырую query string (с ведущим '?' или без, либо
// URL целиком). Некорректные пары пропускаются, ошибка не возвращается.
func ParseQuery(raw string) url.Values {
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "/") {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			raw = raw[i+1:]
		} else {
			raw = ""
		}
	}
	raw = strings.TrimPrefix(raw, "?")
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	// Ошибка игнорируется: url.ParseQuery возвращает все корректные пары.
	values, _ := url.ParseQuery(raw)
	return values
}

// Decode читает из сырых параметров только поля схемы и приводит их к типам.
// Неизвестные ключи игнорируются; некорректные значения отбрасываются,
// для наборов ID отбрасываются только некорректные элементы.
// allow дополнительно ограничивает наборы ID (nil — без ограничений).
func Decode(raw url.Values, schema *Schema, allow Allowlists) Partial {
	out := make(Partial)
	if schema == nil {
		return out
	}

	for _, f := range schema.fields {
		values, ok := raw[f.Name]
		if !ok || len(values) == 0 {
			continue
		}

		switch f.Kind {
		case KindString:
			if s := firstNonEmpty(values); s != "" {
				out[f.Name] = s
			}
		case KindSortToken:
			s := strings.TrimSpace(firstNonEmpty(values))
			if s != "" && sortAllowed(f, s) {
				out[f.Name] = s
			}
		case KindPositiveInt:
			n, ok := parseInteger(firstNonEmpty(values))
			if ok && n >= f.Min && n <= f.Max {
				out[f.Name] = n
			}
		case KindDateTime:
			if s, ok := normalizeDateTime(firstNonEmpty(values)); ok {
				out[f.Name] = s
			}
		case KindIDSet:
			var ids []int
			for _, v := range values {
				for _, part := range strings.Split(v, ",") {
					n, ok := parseInteger(part)
					if !ok {
						continue
					}
					ids = append(ids, n)
				}
			}
			ids = sanitizeIDs(ids)
			if list, restricted := allow[f.Name]; restricted {
				ids = slices.DeleteFunc(ids, func(id int) bool {
					return !slices.Contains(list, id)
				})
			}
			if len(ids) > 0 {
				out[f.Name] = ids
			}
		}
	}

	return out
}

// Validate строит полное состояние: каждое поле схемы получает значение
// из partial, если оно проходит проверку формы, иначе значение по умолчанию.
// Никогда не паникует; в худшем случае возвращает состояние по умолчанию.
func Validate(partial Partial, schema *Schema) State {
	if schema == nil {
		return State{}
	}

	values := make(map[string]any, len(schema.fields))
	for _, f := range schema.fields {
		values[f.Name] = validateField(f, partial[f.Name])
	}
	return State{schema: schema, values: values}
}

// Defaults возвращает состояние схемы со значениями по умолчанию.
func Defaults(schema *Schema) State {
	return Validate(nil, schema)
}

// Encode валидирует partial и возвращает каноническую query string (без '?').
func Encode(partial Partial, schema *Schema) string {
	return Validate(partial, schema).Encode()
}

// Encode сериализует состояние в каноническом порядке полей схемы.
// Поля со значением по умолчанию опускаются; наборы ID — по возрастанию через запятую.
func (s State) Encode() string {
	if s.schema == nil {
		return ""
	}

	var b strings.Builder
	for _, f := range s.schema.fields {
		v := s.values[f.Name]
		if isDefault(f, v) {
			continue
		}

		var encoded string
		switch f.Kind {
		case KindIDSet:
			ids := v.([]int)
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.Itoa(id)
			}
			encoded = strings.Join(parts, ",")
		case KindPositiveInt:
			encoded = strconv.Itoa(v.(int))
		default:
			encoded = url.QueryEscape(v.(string))
		}

		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(encoded)
	}
	return b.String()
}

// validateField приводит одно значение к типу поля или возвращает умолчание.
func validateField(f Field, v any) any {
	switch f.Kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s
		}
	case KindSortToken:
		if s, ok := v.(string); ok {
			// Пробелы по краям отбрасываются так же, как в Decode
			s = strings.TrimSpace(s)
			if s != "" && sortAllowed(f, s) {
				return s
			}
		}
	case KindPositiveInt:
		if n, ok := toInt(v); ok && n >= f.Min && n <= f.Max {
			return n
		}
	case KindDateTime:
		if s, ok := v.(string); ok {
			if norm, ok := normalizeDateTime(s); ok {
				return norm
			}
		}
	case KindIDSet:
		ids := sanitizeIDs(toIntSlice(v))
		if len(ids) > 0 {
			return ids
		}
		return []int(nil)
	}
	return f.Default
}

func sortAllowed(f Field, token string) bool {
	return len(f.Enum) == 0 || slices.Contains(f.Enum, token)
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseInteger разбирает десятичное целое. Допускаются записи вида "2.0" и "1e3",
// если они задают конечное целое значение.
func parseInteger(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// toInt приводит числовые типы Go к int. Дробные и нечисловые значения отвергаются.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		if n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// toIntSlice принимает []int, []int64, []int32 и []any с числовыми элементами.
func toIntSlice(v any) []int {
	switch s := v.(type) {
	case []int:
		return slices.Clone(s)
	case []int64:
		out := make([]int, 0, len(s))
		for _, n := range s {
			if m, ok := toInt(n); ok {
				out = append(out, m)
			}
		}
		return out
	case []int32:
		out := make([]int, 0, len(s))
		for _, n := range s {
			out = append(out, int(n))
		}
		return out
	case []any:
		out := make([]int, 0, len(s))
		for _, e := range s {
			if m, ok := toInt(e); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// sanitizeIDs отбрасывает значения вне [MinID, MaxID], удаляет дубли и сортирует.
func sanitizeIDs(ids []int) []int {
	ids = slices.DeleteFunc(ids, func(id int) bool {
		return id < MinID || id > MaxID
	})
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// normalizeDateTime проверяет дату/дату-время ISO-8601.
// Дата без времени возвращается без изменений, полная метка — в UTC
// в формате CanonicalTimeLayout. Метка без часового пояса считается UTC.
func normalizeDateTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if dateOnlyRe.MatchString(s) {
		if _, err := time.Parse(dateOnlyLayout, s); err != nil {
			return "", false
		}
		return s, true
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Format(CanonicalTimeLayout), true
	}
	for _, layout := range localTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC().Format(CanonicalTimeLayout), true
		}
	}
	return "", false
}
