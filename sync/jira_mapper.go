package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// maxSummaryLength is the longest summary Jira accepts.
const maxSummaryLength = 255

// JiraIssueRequest is the body of a Jira create issue request.
type JiraIssueRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

func (r *JiraIssueRequest) GetFields() map[string]interface{} {
	return r.Fields
}

func (r *JiraIssueRequest) SetField(key string, value interface{}) {
	if r.Fields == nil {
		r.Fields = make(map[string]interface{})
	}
	r.Fields[key] = value
}

func (r *JiraIssueRequest) DeleteField(key string) {
	delete(r.Fields, key)
}

// JiraIssueResponse is the body Jira returns for a created issue.
type JiraIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// ADFNode is a node of an Atlassian document, the rich text format of Jira REST v3.
type ADFNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []ADFNode `json:"content,omitempty"`
}

// NewADFDocument returns a document with a paragraph for each block of text.
// Blocks are split on blank lines, single line breaks become hard breaks.
// Empty blocks are dropped as Jira rejects empty text nodes.
func NewADFDocument(blocks ...string) ADFNode {
	doc := ADFNode{Type: "doc", Version: 1, Content: []ADFNode{}}
	for _, block := range blocks {
		block = strings.ReplaceAll(block, "\r\n", "\n")
		for _, para := range strings.Split(block, "\n\n") {
			var content []ADFNode
			for _, line := range strings.Split(strings.Trim(para, "\n"), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				if len(content) > 0 {
					content = append(content, ADFNode{Type: "hardBreak"})
				}
				content = append(content, ADFNode{Type: "text", Text: line})
			}
			if len(content) > 0 {
				doc.Content = append(doc.Content, ADFNode{Type: "paragraph", Content: content})
			}
		}
	}
	return doc
}

// JiraMapper builds Jira create issue requests from Mantis tickets.
type JiraMapper struct {
	*SyncContext
}

// TicketSummary returns the Jira summary for a ticket, prefixed with the Mantis id.
func TicketSummary(ticket Ticket) string {
	return truncate(fmt.Sprintf("[Mantis #%d] %s", ticket.ID, strings.TrimSpace(ticket.Summary)), maxSummaryLength)
}

// CategoryLabel returns the Jira label used for a Mantis category, e.g. "mantis-feature-request".
func (j JiraMapper) CategoryLabel(category string) string {
	label := strcase.ToKebab(category)
	if j.Config.Jira.LabelPrefix != "" {
		label = j.Config.Jira.LabelPrefix + "-" + label
	}
	return label
}

// MapTicket returns the create issue request for ticket; sourceURL is the
// browser URL of the Mantis ticket, written into the description.
func (j JiraMapper) MapTicket(ticket Ticket, sourceURL string) (JiraIssueRequest, error) {
	var result JiraIssueRequest

	result.SetField("project", map[string]string{"key": j.Config.Project.Jira})
	result.SetField("summary", TicketSummary(ticket))
	result.SetField("description", NewADFDocument(ticket.Description, fmt.Sprintf("Linked Mantis ticket: %s", sourceURL)))
	result.SetField("issuetype", map[string]string{"name": string(j.Config.Mapping.MapIssueType(ticket.Category))})
	result.SetField("priority", map[string]string{"name": string(j.Config.Mapping.MapPriority(ticket.Priority))})
	if j.Config.Jira.CategoryLabels && ticket.Category != "" {
		result.SetField("labels", []string{j.CategoryLabel(ticket.Category)})
	}

	mapFields(j.Config.FieldMappings, ticket.Source, &result)

	if err := ApplyFieldTransforms(j.Config.FieldTransforms, &result); err != nil {
		return result, fmt.Errorf("failed to apply field transforms to Mantis #%d %w", ticket.ID, err)
	}

	return result, result.Validate()
}

// Validate checks the fields Jira requires are present.
func (r JiraIssueRequest) Validate() error {
	var errs []error
	for _, field := range []string{"project", "summary", "issuetype"} {
		if _, exists := r.Fields[field]; !exists {
			errs = append(errs, fmt.Errorf("jira issue is missing required field %s", field))
		}
	}
	if project, ok := r.Fields["project"].(map[string]string); ok && project["key"] == "" {
		errs = append(errs, errors.New("jira issue has no project key"))
	}
	return errors.Join(errs...)
}
