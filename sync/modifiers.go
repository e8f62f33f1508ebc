package sync

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/gjson"
)

// Modifiers usable in field mapping paths, e.g. "category.name|@kebab".
func init() {

	gjson.AddModifier("pathJoinURL", func(json, arg string) string {
		var result string
		path := gjson.Parse(json)
		if !path.Exists() {
			return ""
		}
		if s, err := url.JoinPath(arg, path.String()); err == nil {
			result = s
		}
		return fmt.Sprintf(`"%s"`, result)
	})

	gjson.AddModifier("kebab", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() {
			return ""
		}
		if res.IsArray() {
			var values []string
			for _, v := range res.Array() {
				values = append(values, fmt.Sprintf("%q", strcase.ToKebab(v.String())))
			}
			return "[" + strings.Join(values, ",") + "]"
		}
		return fmt.Sprintf("%q", strcase.ToKebab(res.String()))
	})

	gjson.AddModifier("contains", func(json, arg string) string {
		res := gjson.Parse(json)
		if res.IsArray() {
			values := res.Array()
			for _, v := range values {
				if strings.Contains(v.String(), arg) {
					return fmt.Sprintf("%t", true)
				}
			}
			return fmt.Sprintf("%t", false)
		}
		return fmt.Sprintf("%t", strings.Contains(res.String(), arg))
	})

	gjson.AddModifier("now", func(json, arg string) string {
		return fmt.Sprintf(`"%s"`, time.Now().UTC().Format(time.RFC3339))
	})

}
