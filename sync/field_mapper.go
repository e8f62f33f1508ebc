package sync

// FieldMapper provides a common interface for types that hold field maps.
// This enables shared field mapping logic.
type FieldMapper interface {
	GetFields() map[string]interface{}
	SetField(key string, value interface{})
	DeleteField(key string)
}

// FieldMappings maps Jira field ids (e.g. "customfield_10010") to gjson paths into
// the Mantis ticket. A path wrapped in backticks is a static value.
type FieldMappings struct {
	Strings map[string]string
	Numbers map[string]string
	Options map[string]string // single select fields, sent as {"value": ...}
	Arrays  map[string]string // string array fields such as labels
}

// Has reports whether field is mapped.
func (m FieldMappings) Has(field string) bool {
	for _, fm := range []map[string]string{m.Strings, m.Numbers, m.Options, m.Arrays} {
		if _, exists := fm[field]; exists {
			return true
		}
	}
	return false
}

func staticValue(path string) (string, bool) {
	if len(path) >= 2 && path[0] == '`' && path[len(path)-1] == '`' {
		return path[1 : len(path)-1], true
	}
	return "", false
}

// mapFields maps fields from a source to a FieldMapper using the provided mappings.
// Values missing from the source are left out so Jira applies its own defaults.
func mapFields(mappings FieldMappings, source Source, container FieldMapper) {
	for field, path := range mappings.Strings {
		if s, ok := staticValue(path); ok {
			container.SetField(field, s)
			continue
		}
		if result, exists := source.StringForPath(path); exists && result != "" {
			container.SetField(field, result)
		}
	}
	for field, path := range mappings.Numbers {
		if result, exists := source.FloatForPath(path); exists {
			container.SetField(field, result)
		}
	}
	for field, path := range mappings.Options {
		value, ok := staticValue(path)
		if !ok {
			value, _ = source.StringForPath(path)
		}
		if value != "" {
			container.SetField(field, map[string]string{"value": value})
		}
	}
	for field, path := range mappings.Arrays {
		var values []string
		if s, ok := staticValue(path); ok {
			values = []string{s}
		} else {
			values, _ = source.StringsForPath(path)
		}
		if len(values) == 0 {
			continue
		}
		if existing, ok := container.GetFields()[field].([]string); ok {
			values = append(existing, values...)
		}
		container.SetField(field, values)
	}
}
