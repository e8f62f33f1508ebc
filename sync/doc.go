package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// FieldDocRow represents a single row in the field mapping documentation.
type FieldDocRow struct {
	JiraField  string // Jira field id (e.g., "summary", "customfield_10010")
	IsBuiltin  bool   // Whether the field is always written
	FieldType  string // Text, Number, Option, Array or Mapped value
	SourcePath string // Mantis source path, or the Mantis value for mapping table rows
	Notes      string // Mapping notes (transforms, mapped value)
}

// FieldDocumentation contains all field documentation for a sync configuration.
type FieldDocumentation struct {
	MantisProject string
	JiraProject   string
	Rows          []FieldDocRow
}

// GenerateFieldDocumentation documents how a Mantis ticket becomes a Jira issue under config.
func GenerateFieldDocumentation(config Config) FieldDocumentation {
	doc := FieldDocumentation{
		MantisProject: config.Project.Mantis,
		JiraProject:   config.Project.Jira,
		Rows: []FieldDocRow{
			{JiraField: "project", IsBuiltin: true, FieldType: "Text", SourcePath: "(config)", Notes: fmt.Sprintf("Always %q", config.Project.Jira)},
			{JiraField: "summary", IsBuiltin: true, FieldType: "Text", SourcePath: "summary", Notes: "Prefixed with [Mantis #id]"},
			{JiraField: "description", IsBuiltin: true, FieldType: "Long text", SourcePath: "description", Notes: "Followed by a link to the Mantis ticket"},
		},
	}
	if config.Jira.CategoryLabels {
		doc.Rows = append(doc.Rows, FieldDocRow{JiraField: "labels", IsBuiltin: true, FieldType: "Array", SourcePath: "category.name",
			Notes: fmt.Sprintf("Kebab case with prefix %q", config.Jira.LabelPrefix)})
	}

	processMappingTable(&doc.Rows, "issuetype", "category.name", config.Mapping.IssueTypes, string(DefaultIssueType))
	processMappingTable(&doc.Rows, "priority", "priority.name", config.Mapping.Priorities, string(DefaultPriority))

	var extra []FieldDocRow
	processFieldMappings(&extra, config.FieldMappings, config.FieldTransforms)
	sort.SliceStable(extra, func(i, j int) bool {
		return extra[i].JiraField < extra[j].JiraField
	})
	doc.Rows = append(doc.Rows, extra...)

	return doc
}

// processMappingTable adds a row per table entry, plus one for the fallback.
func processMappingTable(rows *[]FieldDocRow, field, path string, table map[string]string, fallback string) {
	for _, k := range sortedKeys(table) {
		*rows = append(*rows, FieldDocRow{
			JiraField:  field,
			IsBuiltin:  true,
			FieldType:  "Mapped value",
			SourcePath: fmt.Sprintf("%s = %s", path, k),
			Notes:      fmt.Sprintf("Maps to %q", table[k]),
		})
	}
	*rows = append(*rows, FieldDocRow{
		JiraField:  field,
		IsBuiltin:  true,
		FieldType:  "Mapped value",
		SourcePath: fmt.Sprintf("%s = (other)", path),
		Notes:      fmt.Sprintf("Maps to %q", fallback),
	})
}

// processFieldMappings extracts field documentation from a FieldMappings struct.
func processFieldMappings(rows *[]FieldDocRow, mappings FieldMappings, transforms map[string]string) {
	for _, group := range []struct {
		fields    map[string]string
		fieldType string
	}{
		{mappings.Strings, "Text"},
		{mappings.Numbers, "Number"},
		{mappings.Options, "Option"},
		{mappings.Arrays, "Array"},
	} {
		for _, fieldID := range sortedKeys(group.fields) {
			*rows = append(*rows, createFieldDocRow(fieldID, group.fields[fieldID], group.fieldType, transforms))
		}
	}
}

// sortedKeys returns the keys of a map[string]string in sorted order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func createFieldDocRow(fieldid string, sourcepathwithtransforms string, fieldtype string, transforms map[string]string) FieldDocRow {
	row := FieldDocRow{
		JiraField: fieldid,
		FieldType: fieldtype,
	}

	sourcePath, inlineTransforms := parseSourcePath(sourcepathwithtransforms)
	row.SourcePath = sourcePath

	notes := []string{}
	for _, transform := range inlineTransforms {
		notes = append(notes, formatTransformNote(transform))
	}
	if transform, exists := transforms[fieldid]; exists {
		notes = append(notes, formatTransformNote(transform))
	}
	row.Notes = strings.Join(notes, " | ")

	return row
}

// parseSourcePath extracts the source path and inline transforms from a mapping value.
// e.g., "category.name|@kebab" -> ("category.name", ["@kebab"])
func parseSourcePath(value string) (string, []string) {
	if s, ok := staticValue(value); ok {
		return fmt.Sprintf("(static %q)", s), nil
	}

	parts := strings.Split(value, "|")
	sourcePath := parts[0]
	var transforms []string

	for i := 1; i < len(parts); i++ {
		if strings.HasPrefix(parts[i], "@") {
			transforms = append(transforms, parts[i])
		}
	}

	return sourcePath, transforms
}

// formatTransformNote formats a transform into a human-readable note.
func formatTransformNote(transform string) string {
	switch {
	case transform == "warnIfEqual:":
		return "Warns if empty"
	case strings.HasPrefix(transform, "warnIfEqual:"):
		return fmt.Sprintf("Warns if %q", strings.TrimPrefix(transform, "warnIfEqual:"))
	case strings.HasPrefix(transform, "onlyIfNotEqual:"):
		return fmt.Sprintf("Only syncs if not %q", strings.TrimPrefix(transform, "onlyIfNotEqual:"))
	case strings.HasPrefix(transform, "truncate:"):
		return fmt.Sprintf("Truncated to %s characters", strings.TrimPrefix(transform, "truncate:"))
	case strings.HasPrefix(transform, "@pathJoinURL"):
		return "Uses @pathJoinURL transform"
	case transform == "@kebab":
		return "Converts to kebab case"
	case strings.HasPrefix(transform, "@contains:"):
		return fmt.Sprintf("Uses @contains:%s transform", strings.TrimPrefix(transform, "@contains:"))
	case transform == "@now":
		return "Uses @now transform"
	case transform == "toLower":
		return "Converts to lowercase"
	case transform == "toUpper":
		return "Converts to uppercase"
	default:
		return fmt.Sprintf("Transform: %s", transform)
	}
}

// FormatCSV formats the field documentation as CSV.
func (d FieldDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Mantis project %s to Jira project %s", d.MantisProject, d.JiraProject)}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{"Jira Field", "Built-in", "Field Type", "Mantis Source", "Mapping Notes"}); err != nil {
		return "", err
	}

	for _, row := range d.Rows {
		builtinMark := ""
		if row.IsBuiltin {
			builtinMark = "✓"
		}
		if err := writer.Write([]string{row.JiraField, builtinMark, row.FieldType, row.SourcePath, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
