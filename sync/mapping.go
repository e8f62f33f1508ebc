package sync

import "strings"

// IssueType is a Jira issue type name, e.g. "Bug".
type IssueType string

// Priority is a Jira priority name, e.g. "High".
type Priority string

const (
	DefaultIssueType IssueType = "Task"
	DefaultPriority  Priority  = "Medium"
)

// Mapping translates Mantis categories and priorities to Jira issue types and priorities.
// Lookups are case insensitive and never fail: unknown values get the defaults.
type Mapping struct {
	IssueTypes map[string]string `yaml:"issueTypes"`
	Priorities map[string]string `yaml:"priorities"`
}

// NewMapping returns a Mapping with lower cased keys.
func NewMapping(issueTypes, priorities map[string]string) Mapping {
	return Mapping{
		IssueTypes: lowerKeys(issueTypes),
		Priorities: lowerKeys(priorities),
	}
}

func lowerKeys(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[normaliseKey(k)] = v
	}
	return result
}

func normaliseKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MapIssueType returns the Jira issue type for a Mantis category name.
func (m Mapping) MapIssueType(category string) IssueType {
	if v, ok := m.IssueTypes[normaliseKey(category)]; ok && v != "" {
		return IssueType(v)
	}
	return DefaultIssueType
}

// MapPriority returns the Jira priority for a Mantis priority name.
func (m Mapping) MapPriority(priority string) Priority {
	if v, ok := m.Priorities[normaliseKey(priority)]; ok && v != "" {
		return Priority(v)
	}
	return DefaultPriority
}
