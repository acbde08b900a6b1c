package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// RootOptions holds the persistent flags shared by every subcommand.
type RootOptions struct {
	Verbose bool
	Format  string
	DBPath  string
}

// NewRootCommand builds the calendarbot command tree: serve, cache,
// select, and describe, each sharing the --verbose/--format/--db
// persistent flags.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:           "calendarbot",
		Short:         "Event cache and meeting selection engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.Format {
			case "json", "text":
			default:
				return NewExitError(ExitCommandError, "--format must be \"json\" or \"text\"")
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose diagnostic logging")
	root.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format: json or text")
	root.PersistentFlags().StringVar(&opts.DBPath, "db", "calendarbot.db", "path to the SQLite cache database")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newCacheCommand(opts))
	root.AddCommand(newSelectCommand(opts))
	root.AddCommand(newDescribeCommand(opts))

	return root
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
