package sync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapTicketWithLabelsAndFieldMappings(t *testing.T) {
	config := newTestConfig(t, "https://mantis.example.com", "https://jira.example.com")
	config.Jira = JiraSettings{CategoryLabels: true, LabelPrefix: "mantis"}
	config.FieldMappings = FieldMappings{
		Strings: map[string]string{
			"customfield_10010": "reporter.name",
			"customfield_10011": "`imported`",
			"customfield_10012": "handler.name",
		},
		Numbers: map[string]string{"customfield_10020": "id"},
		Options: map[string]string{"customfield_10030": "severity.name", "customfield_10031": "`minor`"},
		Arrays:  map[string]string{"labels": "tags.#.name"},
	}
	config.FieldTransforms = map[string]string{
		"customfield_10010": "toUpper",
		"customfield_10030": "onlyIfNotEqual:minor",
		"customfield_10031": "onlyIfNotEqual:minor",
	}
	mapper := JiraMapper{SyncContext: NewSyncContext(config, false)}

	request, err := mapper.MapTicket(testTicket(12, "Feature Request", "normal"), "https://mantis.example.com/view.php?id=12")
	require.NoError(t, err)

	fields := request.GetFields()
	assert.Equal(t, map[string]string{"name": "Story"}, fields["issuetype"])
	assert.Equal(t, map[string]string{"name": "Medium"}, fields["priority"])
	assert.Equal(t, []string{"mantis-feature-request", "ui"}, fields["labels"])
	assert.Equal(t, "ALICE", fields["customfield_10010"])
	assert.Equal(t, "imported", fields["customfield_10011"])
	assert.NotContains(t, fields, "customfield_10012")
	assert.Equal(t, float64(12), fields["customfield_10020"])
	assert.Equal(t, map[string]string{"value": "major"}, fields["customfield_10030"])
	assert.NotContains(t, fields, "customfield_10031")
}

func TestMapTicketDefaultsUnknownValues(t *testing.T) {
	mapper := JiraMapper{SyncContext: NewSyncContext(newTestConfig(t, "https://mantis.example.com", "https://jira.example.com"), false)}

	request, err := mapper.MapTicket(testTicket(5, "General", "immediate"), "https://mantis.example.com/view.php?id=5")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Task"}, request.Fields["issuetype"])
	assert.Equal(t, map[string]string{"name": "Medium"}, request.Fields["priority"])
}

func TestMapTicketRejectsUnknownTransform(t *testing.T) {
	config := newTestConfig(t, "https://mantis.example.com", "https://jira.example.com")
	config.FieldMappings = FieldMappings{Strings: map[string]string{"customfield_1": "reporter.name"}}
	config.FieldTransforms = map[string]string{"customfield_1": "reverse"}
	mapper := JiraMapper{SyncContext: NewSyncContext(config, false)}

	_, err := mapper.MapTicket(testTicket(5, "Bug", "high"), "https://mantis.example.com/view.php?id=5")
	assert.ErrorContains(t, err, "unsupported transform: reverse")
}

func TestTicketSummary(t *testing.T) {
	assert.Equal(t, "[Mantis #7] Login fails", TicketSummary(Ticket{ID: 7, Summary: " Login fails "}))

	long := TicketSummary(Ticket{ID: 7, Summary: strings.Repeat("é", 300)})
	assert.Equal(t, maxSummaryLength, len([]rune(long)))
}

func TestNewADFDocument(t *testing.T) {
	doc := NewADFDocument("First line\nsecond line\r\n\r\nNext paragraph", "", "Linked Mantis ticket: https://mantis.example.com/view.php?id=1")

	expected := ADFNode{Type: "doc", Version: 1, Content: []ADFNode{
		{Type: "paragraph", Content: []ADFNode{
			{Type: "text", Text: "First line"},
			{Type: "hardBreak"},
			{Type: "text", Text: "second line"},
		}},
		{Type: "paragraph", Content: []ADFNode{{Type: "text", Text: "Next paragraph"}}},
		{Type: "paragraph", Content: []ADFNode{{Type: "text", Text: "Linked Mantis ticket: https://mantis.example.com/view.php?id=1"}}},
	}}
	assert.Equal(t, expected, doc)
}

func TestApplyFieldTransforms(t *testing.T) {
	request := JiraIssueRequest{Fields: map[string]interface{}{
		"a": "MiXeD",
		"b": "MiXeD",
		"c": "abcdef",
		"d": "skip",
		"e": "keep",
	}}

	err := ApplyFieldTransforms(map[string]string{
		"a":       "toLower",
		"b":       "toUpper",
		"c":       "truncate:3",
		"d":       "onlyIfNotEqual:skip",
		"e":       "onlyIfNotEqual:skip",
		"missing": "toLower",
	}, &request)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": "mixed", "b": "MIXED", "c": "abc", "e": "keep"}, request.Fields)

	err = ApplyFieldTransforms(map[string]string{"a": "truncate:x"}, &request)
	assert.ErrorContains(t, err, "invalid argument x")
}

func TestModifiers(t *testing.T) {
	source := NewSource(`{"category":{"name":"Feature Request"},"tags":[{"name":"Needs Review"},{"name":"ui"}],"summary":"Crash on save"}`)

	s, _ := source.StringForPath("category.name|@kebab")
	assert.Equal(t, "feature-request", s)

	values, _ := source.StringsForPath("tags.#.name|@kebab")
	assert.Equal(t, []string{"needs-review", "ui"}, values)

	s, _ = source.StringForPath("summary|@contains:Crash")
	assert.Equal(t, "true", s)
}

func TestMapTicketWithModifierMappings(t *testing.T) {
	config := newTestConfig(t, "https://mantis.example.com", "https://jira.example.com")
	config.FieldMappings = FieldMappings{
		Strings: map[string]string{
			"customfield_10040": "id|@pathJoinURL:https://mantis.example.com/issues",
			"customfield_10041": "@now",
		},
	}
	mapper := JiraMapper{SyncContext: NewSyncContext(config, false)}

	before := time.Now().UTC().Truncate(time.Second)
	request, err := mapper.MapTicket(testTicket(12, "Bug", "high"), "https://mantis.example.com/view.php?id=12")
	require.NoError(t, err)

	assert.Equal(t, "https://mantis.example.com/issues/12", request.Fields["customfield_10040"])

	stamp, ok := request.Fields["customfield_10041"].(string)
	require.True(t, ok)
	synced, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.False(t, synced.Before(before), "expected %s not before %s", synced, before)
	assert.WithinDuration(t, time.Now(), synced, time.Minute)
}
