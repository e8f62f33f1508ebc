package main

import (
	"fmt"
	"log"
	"time"

	"github.com/homemade/tracksync/sync"
	"github.com/spf13/cobra"
)

// NewCmdSync runs the sync loop until interrupted.
func NewCmdSync(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync new Mantis tickets to Jira",
		Long: `Sync new Mantis tickets to Jira, polling every schedule.pollInterval until
interrupted. Tickets already in the ledger are never synced again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := sync.LoadConfigFromEnvironment(opts.configPaths)
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}

			ledger, err := sync.OpenLedger(config.Ledger)
			if err != nil {
				return err
			}
			defer ledger.Close()

			syncContext := sync.NewSyncContext(config, opts.recordRequests)
			syncer := sync.NewSyncer(syncContext,
				sync.MantisFetcherAndUpdater{SyncContext: syncContext},
				sync.NewMantisJiraWriter(syncContext),
				ledger)

			if once {
				result, err := syncer.SyncPass(cmd.Context(), config.Project.Mantis)
				if err != nil {
					return err
				}
				log.Printf("Sync pass [%s] complete: %d pages, %d synced, %d skipped, %d failed",
					result.RunID, result.Pages, result.Synced, result.Skipped, result.Failed)
				return nil
			}

			log.Printf("Syncing Mantis project %s to Jira project %s", config.Project.Mantis, config.Project.Jira)
			return syncer.Run(cmd.Context(), config.Project.Mantis)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sync pass and exit")

	return cmd
}

// NewCmdComments exports today's Jira comments to a JSON file.
func NewCmdComments(opts *rootOptions) *cobra.Command {
	var output, project string

	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Export today's comments on a Jira project to JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := sync.LoadConfigFromEnvironment(opts.configPaths)
			if err != nil {
				return err
			}
			if output != "" {
				config.Comments.Output = output
			}
			if project != "" {
				config.Comments.Project = project
			}
			if err := config.ValidateComments(); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}

			jira := sync.JiraFetcherAndUpdater{SyncContext: sync.NewSyncContext(config, opts.recordRequests)}
			comments, err := jira.FetchTodaysComments(cmd.Context(), config.Comments.Project, time.Now())
			if err != nil {
				return err
			}
			if err := sync.WriteCommentsFile(config.Comments.Output, comments); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retrieved and saved %d comments from today.\n", len(comments))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default comments.output)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Jira project key (default comments.project)")

	return cmd
}

// NewCmdDoc prints the field mapping documentation as CSV.
func NewCmdDoc(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doc",
		Short: "Print how Mantis fields map to Jira fields, as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := sync.LoadConfigFromEnvironment(opts.configPaths)
			if err != nil {
				return err
			}
			csv, err := sync.GenerateFieldDocumentation(config).FormatCSV()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), csv)
			return nil
		},
	}
}
