package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// PassResult summarises one sync pass.
type PassResult struct {
	RunID   string
	Pages   int
	Synced  int
	Skipped int
	Failed  int
}

// Syncer replicates new tickets from a source to a destination, recording each
// one in the ledger so it is never synced twice.
type Syncer struct {
	*SyncContext
	Fetcher TicketFetcher
	Writer  TicketWriter
	Ledger  Ledger

	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewSyncer(syncContext *SyncContext, fetcher TicketFetcher, writer TicketWriter, ledger Ledger) *Syncer {
	limit := rate.Inf
	if d := syncContext.Config.Schedule.PageDelay; d > 0 {
		limit = rate.Every(d)
	}
	return &Syncer{
		SyncContext: syncContext,
		Fetcher:     fetcher,
		Writer:      writer,
		Ledger:      ledger,
		limiter:     rate.NewLimiter(limit, 1),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// sleepContext waits for d, returning early with ctx.Err() when ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SyncPass walks every page of the project once, stopping at the first page with
// no entries. A failing ticket is logged and counted, it never stops the pass. The pass is aborted, with an error, when a
// page cannot be fetched, the context is done or a ticket panics.
func (s *Syncer) SyncPass(ctx context.Context, projectID string) (result PassResult, err error) {
	result.RunID = uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync pass %s aborted by panic: %v", result.RunID, r)
		}
	}()

	for page := 1; ; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}
		fetched, err := s.Fetcher.FetchPage(ctx, projectID, s.Config.Schedule.PageSize, page)
		if err != nil {
			return result, fmt.Errorf("sync pass %s aborted %w", result.RunID, err)
		}
		if fetched.Entries == 0 {
			return result, nil
		}
		result.Pages++
		// entries the fetcher could not read were logged there
		if unreadable := fetched.Entries - len(fetched.Tickets); unreadable > 0 {
			result.Failed += unreadable
		}

		for _, ticket := range fetched.Tickets {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			synced, err := s.syncTicket(ctx, ticket)
			switch {
			case err != nil:
				result.Failed++
				logTicketError(result.RunID, ticket.ID, err)
			case synced:
				result.Synced++
			default:
				result.Skipped++
			}
		}
	}
}

// syncTicket creates, links and records one ticket. It reports false when the
// ticket is not eligible or has already been synced.
func (s *Syncer) syncTicket(ctx context.Context, ticket Ticket) (bool, error) {
	if !s.Config.IsEligible(ticket.Category) {
		return false, nil
	}
	exists, err := s.Ledger.Has(ctx, ticket.ID)
	if err != nil || exists {
		return false, err
	}

	key, err := s.Writer.CreateTicket(ctx, ticket)
	if err != nil {
		return false, err
	}
	if err := s.Writer.LinkBack(ctx, ticket.ID, key); err != nil {
		return false, err
	}
	entry := LedgerEntry{
		SourceID:      ticket.ID,
		DestinationID: key,
		SyncTime:      s.now(),
		Category:      ticket.Category,
	}
	if err := s.Ledger.Record(ctx, entry); err != nil {
		return false, fmt.Errorf("created and linked Jira %s but failed to record it %w", key, err)
	}
	log.Printf("Synced Mantis #%d to Jira %s", ticket.ID, key)
	return true, nil
}

func logTicketError(runID string, sourceID int64, err error) {
	var createErr *CreateError
	var linkErr *LinkError
	var duplicateErr *DuplicateKeyError
	switch {
	case errors.As(err, &createErr):
		log.Printf("Error [%s] creating Jira issue for Mantis #%d (%s): %v", runID, sourceID, classify(err), err)
	case errors.As(err, &linkErr):
		// no ledger entry was written, so the next pass creates the issue again
		log.Printf("Error [%s] linking Mantis #%d to Jira %s (%s), it will be synced again: %v", runID, sourceID, linkErr.DestinationID, classify(err), err)
	case errors.As(err, &duplicateErr):
		log.Printf("Warning [%s] Mantis #%d was recorded concurrently: %v", runID, sourceID, err)
	default:
		log.Printf("Error [%s] syncing Mantis #%d (%s): %v", runID, sourceID, classify(err), err)
	}
}

// Run syncs the project until ctx is done, waiting schedule.pollInterval between
// passes, or schedule.errorBackoff after a pass fails.
func (s *Syncer) Run(ctx context.Context, projectID string) error {
	for {
		wait := s.Config.Schedule.PollInterval
		result, err := s.SyncPass(ctx, projectID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			log.Printf("Error [%s] in sync pass, retrying in %s: %v", result.RunID, s.Config.Schedule.ErrorBackoff, err)
			wait = s.Config.Schedule.ErrorBackoff
		} else {
			log.Printf("Sync pass [%s] complete: %d pages, %d synced, %d skipped, %d failed",
				result.RunID, result.Pages, result.Synced, result.Skipped, result.Failed)
		}

		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
