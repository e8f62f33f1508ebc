package sync

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ApplyFieldTransforms applies the configured transforms to mapped Jira fields.
// Transforms are "name" or "name:arg". Fields that were not mapped are ignored.
func ApplyFieldTransforms(transforms map[string]string, destination FieldMapper) error {
	if len(transforms) == 0 {
		return nil
	}

	fields := destination.GetFields()

	for field, transform := range transforms {
		value, exists := fields[field]
		if !exists {
			continue
		}

		function, arg, _ := strings.Cut(transform, ":")

		switch function {
		case "toLower":
			if s, ok := value.(string); ok {
				destination.SetField(field, strings.ToLower(s))
			}

		case "toUpper":
			if s, ok := value.(string); ok {
				destination.SetField(field, strings.ToUpper(s))
			}

		case "truncate":
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid argument %s for transform %s", arg, transform)
			}
			if s, ok := value.(string); ok {
				destination.SetField(field, truncate(s, n))
			}

		case "warnIfEqual":
			if s := fieldString(value); arg == s {
				log.Printf("Warning: %s has value of '%v'\n", field, s)
			}

		case "onlyIfNotEqual":
			if s := fieldString(value); arg == s {
				destination.DeleteField(field)
			}

		default:
			return fmt.Errorf("unsupported transform: %s", transform)
		}
	}

	return nil
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// fieldString returns the comparable text of a field value.
// Option fields ({"value": ...}) and named fields ({"name": ...}) compare by their text.
func fieldString(value interface{}) string {
	if m, ok := value.(map[string]string); ok {
		if v, exists := m["value"]; exists {
			return v
		}
		return m["name"]
	}
	return fmt.Sprintf("%v", value)
}
