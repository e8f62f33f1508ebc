package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"
)

// searchPageSize is the number of issues requested per Jira search page.
const searchPageSize = 50

// Comment is a Jira comment as written to the export file.
type Comment struct {
	Issue     string `json:"issue"`
	Commenter string `json:"commenter"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Content   string `json:"content"`
}

// jiraTimeLayout is the layout of Jira timestamps, e.g. 2024-01-15T10:30:00.000+0000.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// FetchTodaysComments returns the comments made on now's date on issues of the
// Jira project created today. Dates are compared in now's location.
func (j JiraFetcherAndUpdater) FetchTodaysComments(ctx context.Context, projectKey string, now time.Time) ([]Comment, error) {
	jql := fmt.Sprintf(`project = "%s" AND created >= startOfDay()`, projectKey)
	result := []Comment{}
	for startAt := 0; ; {
		var status int
		var errBody, body string
		err := j.JiraAPIBuilder().
			Path("rest/api/3/search").
			Param("jql", jql).
			Param("fields", "comment").
			Param("expand", "renderedFields").
			Param("startAt", strconv.Itoa(startAt)).
			Param("maxResults", strconv.Itoa(searchPageSize)).
			AddValidator(statusValidator(&status, &errBody, http.StatusOK)).
			ToString(&body).
			Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to search Jira project %s: status %d: %s", projectKey, status, bodyOrErr(errBody, err))
		}
		if !gjson.Valid(body) {
			return nil, fmt.Errorf("invalid Jira search response: %s", body)
		}

		issues := gjson.Get(body, "issues").Array()
		for _, issue := range issues {
			key := issue.Get("key").String()
			for _, c := range issue.Get("fields.comment.comments").Array() {
				created, err := parseJiraTime(c.Get("created").String(), now.Location())
				if err != nil {
					log.Printf("Warning: skipping comment %s on %s: %v", c.Get("id").String(), key, err)
					continue
				}
				if !sameDay(created, now) {
					continue
				}
				result = append(result, Comment{
					Issue:     key,
					Commenter: c.Get("author.displayName").String(),
					Date:      created.Format(time.DateOnly),
					Time:      created.Format(time.TimeOnly),
					Content:   commentText(c.Get("body")),
				})
			}
		}

		startAt += len(issues)
		if len(issues) == 0 || startAt >= int(gjson.Get(body, "total").Int()) {
			return result, nil
		}
	}
}

func parseJiraTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(jiraTimeLayout, s)
	if err == nil {
		return t.In(loc), nil
	}
	// fall back to the local part only
	if len(s) >= 19 {
		return time.ParseInLocation("2006-01-02T15:04:05", s[:19], loc)
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// commentText returns a comment body as plain text. REST v3 bodies are Atlassian
// documents, older ones are plain strings.
func commentText(body gjson.Result) string {
	if body.Type == gjson.String {
		return body.String()
	}
	var paragraphs []string
	for _, block := range body.Get("content").Array() {
		paragraphs = append(paragraphs, adfText(block))
	}
	return strings.Join(paragraphs, "\n")
}

func adfText(node gjson.Result) string {
	switch node.Get("type").String() {
	case "text":
		return node.Get("text").String()
	case "hardBreak":
		return "\n"
	case "mention", "emoji":
		return node.Get("attrs.text").String()
	}
	var sb strings.Builder
	for i, child := range node.Get("content").Array() {
		if i > 0 && child.Get("content").Exists() {
			sb.WriteString("\n")
		}
		sb.WriteString(adfText(child))
	}
	return sb.String()
}

// WriteCommentsFile writes comments to path as indented JSON, replacing any existing file atomically.
func WriteCommentsFile(path string, comments []Comment) error {
	if comments == nil {
		comments = []Comment{}
	}
	b, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode comments %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(b, '\n'))); err != nil {
		return fmt.Errorf("failed to write %s %w", path, err)
	}
	return nil
}
