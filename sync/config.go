package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/config"
)

type Config struct {
	API     APISettings
	Project ProjectSettings
	// Categories lists the Mantis category names eligible for sync, matched exactly.
	Categories      []string
	Mapping         Mapping
	FieldMappings   FieldMappings
	FieldTransforms map[string]string
	Jira            JiraSettings
	Mantis          MantisSettings
	Schedule        ScheduleSettings
	Retry           RetrySettings
	Ledger          LedgerSettings
	Comments        CommentsSettings
}

type APISettings struct {
	Keys struct {
		Mantis string
		Jira   string
	}
	// Users holds the account names paired with API keys (Jira basic auth).
	Users struct {
		Jira string
	}
	Endpoints struct {
		Mantis string
		Jira   string
	}
}

type ProjectSettings struct {
	Mantis string // Mantis project id, e.g. "2"
	Jira   string // Jira project key, e.g. "DEMO"
}

type JiraSettings struct {
	CategoryLabels bool   `yaml:"categoryLabels"`
	LabelPrefix    string `yaml:"labelPrefix"`
}

type MantisSettings struct {
	NoteViewState string `yaml:"noteViewState"`
}

type ScheduleSettings struct {
	PageSize     int           `yaml:"pageSize"`
	PageDelay    time.Duration `yaml:"pageDelay"`
	PollInterval time.Duration `yaml:"pollInterval"`
	ErrorBackoff time.Duration `yaml:"errorBackoff"`
}

type RetrySettings struct {
	Attempts int
	Backoff  time.Duration
}

type LedgerSettings struct {
	Driver string
	DSN    string `yaml:"dsn"`
}

type CommentsSettings struct {
	Project string
	Output  string
}

type ConfigUnmarshaler interface {
	Unmarshal(compev CompositeEnvVar, sources ...MappingFile) (Config, error)
}

type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

// JSONCompositeEnvVar resolves ${VAR} references from a JSON object held in the
// Parent environment variable, e.g. TRACKSYNC={"MANTIS_TOKEN":"..."}.
// Keys missing from the object fall back to plain environment variables.
type JSONCompositeEnvVar struct {
	Parent string
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				if v, exists := m[child]; exists {
					return v, true
				}
			}
		}
	}
	return os.LookupEnv(child)
}

type YAMLConfigUnmarshaler struct{}

func (u YAMLConfigUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...MappingFile) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(compev.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	targets := []struct {
		key      string
		target   interface{}
		optional bool
	}{
		{key: "api", target: &result.API},
		{key: "project", target: &result.Project},
		{key: "categories", target: &result.Categories},
		{key: "mapping", target: &result.Mapping},
		{key: "fieldMappings", target: &result.FieldMappings, optional: true},
		{key: "fieldTransforms", target: &result.FieldTransforms, optional: true},
		{key: "jira", target: &result.Jira, optional: true},
		{key: "mantis", target: &result.Mantis, optional: true},
		{key: "schedule", target: &result.Schedule},
		{key: "retry", target: &result.Retry},
		{key: "ledger", target: &result.Ledger},
		{key: "comments", target: &result.Comments, optional: true},
	}
	for _, t := range targets {
		if t.optional && !yaml.Get(t.key).HasValue() {
			continue
		}
		err = yaml.Get(t.key).Populate(t.target)
		if err != nil {
			return result, readError(t.key, err)
		}
	}

	result.Mapping = NewMapping(result.Mapping.IssueTypes, result.Mapping.Priorities)

	return result, nil
}

// Validate reports every missing or invalid setting needed to run a sync.
func (c Config) Validate() error {
	var errs []error
	required := map[string]string{
		"api.endpoints.mantis": c.API.Endpoints.Mantis,
		"api.endpoints.jira":   c.API.Endpoints.Jira,
		"api.keys.mantis":      c.API.Keys.Mantis,
		"api.keys.jira":        c.API.Keys.Jira,
		"api.users.jira":       c.API.Users.Jira,
		"project.mantis":       c.Project.Mantis,
		"project.jira":         c.Project.Jira,
	}
	for _, key := range sortedKeys(required) {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("categories must list at least one Mantis category"))
	}
	if c.Schedule.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("schedule.pageSize must be positive, have %d", c.Schedule.PageSize))
	}
	if c.Schedule.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("schedule.pageDelay must not be negative, have %s", c.Schedule.PageDelay))
	}
	if c.Schedule.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("schedule.pollInterval must be positive, have %s", c.Schedule.PollInterval))
	}
	if c.Schedule.ErrorBackoff <= 0 {
		errs = append(errs, fmt.Errorf("schedule.errorBackoff must be positive, have %s", c.Schedule.ErrorBackoff))
	}
	if c.Retry.Attempts < 0 {
		errs = append(errs, fmt.Errorf("retry.attempts must not be negative, have %d", c.Retry.Attempts))
	}
	if _, err := dialectFor(c.Ledger.Driver); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.DSN == "" {
		errs = append(errs, errors.New("ledger.dsn is required"))
	}
	for field, transform := range c.FieldTransforms {
		if !c.FieldMappings.Has(field) {
			errs = append(errs, fmt.Errorf("invalid transform %q, field %s has no mapping", transform, field))
		}
	}
	return errors.Join(errs...)
}

// IsEligible reports whether tickets in category are synced.
func (c Config) IsEligible(category string) bool {
	return slices.Contains(c.Categories, category)
}

// ValidateComments reports every missing setting needed to export Jira comments.
func (c Config) ValidateComments() error {
	var errs []error
	required := map[string]string{
		"api.endpoints.jira": c.API.Endpoints.Jira,
		"api.keys.jira":      c.API.Keys.Jira,
		"api.users.jira":     c.API.Users.Jira,
		"comments.project":   c.Comments.Project,
		"comments.output":    c.Comments.Output,
	}
	for _, key := range sortedKeys(required) {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	return errors.Join(errs...)
}
