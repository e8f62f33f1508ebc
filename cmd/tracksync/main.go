package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	cmd := NewCmdRoot()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.Fatalf("Error: %v", err)
	}
}

type rootOptions struct {
	configPaths    []string
	recordRequests bool
	quiet          bool
}

// NewCmdRoot returns the tracksync command with all subcommands attached.
func NewCmdRoot() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "tracksync",
		Short: "tracksync replicates MantisBT tickets into Jira",
		Long: `tracksync polls a MantisBT project and creates a Jira issue for every new
ticket in an eligible category, noting the Jira key back on the Mantis ticket.
Config files are layered on the built in defaults, see "tracksync doc".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.quiet {
				log.SetOutput(io.Discard)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVarP(&opts.configPaths, "config", "c", nil, "config file(s), later files override earlier ones")
	flags.BoolVar(&opts.recordRequests, "record", false, "record HTTP requests and responses under testdata/.requests")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "discard log output")

	cmd.AddCommand(NewCmdSync(&opts))
	cmd.AddCommand(NewCmdComments(&opts))
	cmd.AddCommand(NewCmdDoc(&opts))

	return cmd
}
