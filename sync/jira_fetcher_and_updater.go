package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carlmjohnson/requests"
)

// JiraFetcherAndUpdater handles all Jira API operations.
// It embeds *SyncContext for shared sync configuration.
type JiraFetcherAndUpdater struct {
	*SyncContext
}

// JiraAPIBuilder returns a new requests.Builder configured for the Jira REST API.
// Jira Cloud API tokens are sent as basic auth paired with the account email.
func (j JiraFetcherAndUpdater) JiraAPIBuilder() *requests.Builder {
	return apiBuilder(j.Config.API.Endpoints.Jira, j.RecordRequests, "jira").
		BasicAuth(j.Config.API.Users.Jira, j.Config.API.Keys.Jira).
		Accept("application/json")
}

// IssueURL returns the browser URL of a Jira issue.
func (j JiraFetcherAndUpdater) IssueURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", strings.TrimSuffix(j.Config.API.Endpoints.Jira, "/"), key)
}

// CreateIssue creates a Jira issue for the Mantis ticket sourceID and returns Jira's response.
// Any non 2xx response, or a 2xx without an issue key, is a *CreateError.
func (j JiraFetcherAndUpdater) CreateIssue(ctx context.Context, sourceID int64, request JiraIssueRequest) (JiraIssueResponse, error) {
	var result JiraIssueResponse
	var status int
	var errBody string
	err := j.JiraAPIBuilder().
		Path("rest/api/3/issue").
		BodyJSON(&request).
		AddValidator(statusValidator(&status, &errBody, successStatuses...)).
		ToJSON(&result).
		Fetch(ctx)
	if err != nil {
		return result, &CreateError{SourceID: sourceID, StatusCode: status, Body: errBody, Err: err}
	}
	if result.Key == "" {
		return result, &CreateError{SourceID: sourceID, StatusCode: status, Err: errors.New("response has no issue key")}
	}
	return result, nil
}
