package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Source wraps the raw JSON of a Mantis ticket so mappings can read any field by path.
type Source struct {
	data gjson.Result
}

// NewSource parses json into a Source.
func NewSource(json string) Source {
	return Source{data: gjson.Parse(json)}
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) IntForPath(path string) (int64, bool) {
	result := s.data.Get(path)
	return result.Int(), result.Exists() && (result.Value() != nil)
}

func (s Source) FloatForPath(path string) (float64, bool) {
	result := s.data.Get(path)
	return result.Float(), result.Exists() && (result.Value() != nil)
}

func (s Source) StringsForPath(path string) ([]string, bool) {
	result := s.data.Get(path)
	if !result.Exists() || result.Value() == nil {
		return nil, false
	}
	if !result.IsArray() {
		return []string{result.String()}, true
	}
	var values []string
	for _, v := range result.Array() {
		if s := v.String(); s != "" {
			values = append(values, s)
		}
	}
	return values, true
}

// Ticket is a Mantis issue as returned by the issues endpoint.
type Ticket struct {
	ID          int64
	Category    string
	Priority    string
	Summary     string
	Description string
	Source      Source
}

func ticketFromSource(source Source) (Ticket, error) {
	id, exists := source.IntForPath("id")
	if !exists || id <= 0 {
		return Ticket{}, errors.New("ticket is missing an id")
	}
	result := Ticket{ID: id, Source: source}
	result.Category, _ = source.StringForPath("category.name")
	result.Priority, _ = source.StringForPath("priority.name")
	result.Summary, _ = source.StringForPath("summary")
	result.Description, _ = source.StringForPath("description")
	return result, nil
}

// MantisFetcherAndUpdater handles all Mantis API operations.
// It embeds *SyncContext for shared sync configuration.
type MantisFetcherAndUpdater struct {
	*SyncContext
}

// MantisAPIBuilder returns a new requests.Builder configured for the Mantis REST API.
func (m MantisFetcherAndUpdater) MantisAPIBuilder() *requests.Builder {
	return apiBuilder(m.Config.API.Endpoints.Mantis, m.RecordRequests, "mantis").
		Header("Authorization", m.Config.API.Keys.Mantis)
}

// TicketURL returns the browser URL of a Mantis ticket.
func (m MantisFetcherAndUpdater) TicketURL(sourceID int64) string {
	return fmt.Sprintf("%s/view.php?id=%d", strings.TrimSuffix(m.Config.API.Endpoints.Mantis, "/"), sourceID)
}

// TicketPage is one page of the Mantis issue listing.
type TicketPage struct {
	Tickets []Ticket
	// Entries counts every issue Mantis returned, including any that could not be read.
	// Zero marks the end of the data.
	Entries int
}

// FetchPage fetches one page of tickets for a project, page numbers starting at 1.
// Transient failures are retried as configured before a *SourceUnavailableError is returned.
func (m MantisFetcherAndUpdater) FetchPage(ctx context.Context, projectID string, pageSize, page int) (TicketPage, error) {
	var result TicketPage
	err := withRetry(ctx, m.Config.Retry, fmt.Sprintf("fetch of Mantis page %d", page), func() error {
		var err error
		result, err = m.fetchPage(ctx, projectID, pageSize, page)
		return err
	})
	return result, err
}

func (m MantisFetcherAndUpdater) fetchPage(ctx context.Context, projectID string, pageSize, page int) (TicketPage, error) {
	var status int
	var errBody, json string
	err := m.MantisAPIBuilder().
		Path("api/rest/issues").
		Param("project_id", projectID).
		Param("page_size", strconv.Itoa(pageSize)).
		Param("page", strconv.Itoa(page)).
		AddValidator(statusValidator(&status, &errBody, http.StatusOK)).
		ToString(&json).
		Fetch(ctx)
	if err != nil {
		sourceErr := &SourceUnavailableError{Project: projectID, Page: page, Body: errBody, Err: err}
		if status != http.StatusOK {
			sourceErr.StatusCode = status
		}
		return TicketPage{}, sourceErr
	}
	if !gjson.Valid(json) {
		log.Printf("Invalid Mantis Response:\n%s", json)
		return TicketPage{}, &SourceUnavailableError{Project: projectID, Page: page, Body: json, Err: errors.New("invalid json response")}
	}

	issues := gjson.Get(json, "issues")
	if !issues.Exists() {
		return TicketPage{}, &SourceUnavailableError{Project: projectID, Page: page, Body: json, Err: errors.New("response has no issues")}
	}
	entries := issues.Array()
	result := TicketPage{Entries: len(entries)}
	for _, v := range entries {
		ticket, err := ticketFromSource(Source{data: v})
		if err != nil {
			log.Printf("Warning: skipping Mantis ticket on page %d: %v", page, err)
			continue
		}
		result.Tickets = append(result.Tickets, ticket)
	}
	return result, nil
}

// LinkBack adds a note to the Mantis ticket pointing at the Jira issue.
// Mantis answers 201 Created; anything else is a *LinkError.
func (m MantisFetcherAndUpdater) LinkBack(ctx context.Context, sourceID int64, destinationKey, destinationURL string) error {
	note, err := sjson.Set("", "text", fmt.Sprintf("Linked Jira ticket: %s", destinationURL))
	if err == nil && m.Config.Mantis.NoteViewState != "" {
		note, err = sjson.Set(note, "view_state.name", m.Config.Mantis.NoteViewState)
	}
	if err != nil {
		return &LinkError{SourceID: sourceID, DestinationID: destinationKey, Err: err}
	}

	var status int
	var errBody string
	err = m.MantisAPIBuilder().
		Pathf("api/rest/issues/%d/notes", sourceID).
		BodyBytes([]byte(note)).
		ContentType("application/json").
		AddValidator(statusValidator(&status, &errBody, http.StatusCreated)).
		Fetch(ctx)
	if err != nil {
		return &LinkError{SourceID: sourceID, DestinationID: destinationKey, StatusCode: status, Body: errBody, Err: err}
	}
	return nil
}
