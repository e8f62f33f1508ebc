package sync

import "context"

// TicketFetcher reads pages of source tickets, page numbers starting at 1.
type TicketFetcher interface {
	FetchPage(ctx context.Context, projectID string, pageSize, page int) (TicketPage, error)
}

// TicketWriter performs the two remote writes of a sync: creating the
// destination ticket and linking the source ticket back to it.
type TicketWriter interface {
	CreateTicket(ctx context.Context, ticket Ticket) (string, error)
	LinkBack(ctx context.Context, sourceID int64, destinationID string) error
}

// MantisJiraWriter creates Jira issues for Mantis tickets and notes them on Mantis.
type MantisJiraWriter struct {
	Mantis MantisFetcherAndUpdater
	Jira   JiraFetcherAndUpdater
	Mapper JiraMapper
}

func NewMantisJiraWriter(syncContext *SyncContext) MantisJiraWriter {
	return MantisJiraWriter{
		Mantis: MantisFetcherAndUpdater{SyncContext: syncContext},
		Jira:   JiraFetcherAndUpdater{SyncContext: syncContext},
		Mapper: JiraMapper{SyncContext: syncContext},
	}
}

// CreateTicket maps ticket and creates the Jira issue, returning its key.
func (w MantisJiraWriter) CreateTicket(ctx context.Context, ticket Ticket) (string, error) {
	request, err := w.Mapper.MapTicket(ticket, w.Mantis.TicketURL(ticket.ID))
	if err != nil {
		return "", &CreateError{SourceID: ticket.ID, Err: err}
	}
	response, err := w.Jira.CreateIssue(ctx, ticket.ID, request)
	if err != nil {
		return "", err
	}
	return response.Key, nil
}

func (w MantisJiraWriter) LinkBack(ctx context.Context, sourceID int64, destinationID string) error {
	return w.Mantis.LinkBack(ctx, sourceID, destinationID, w.Jira.IssueURL(destinationID))
}
