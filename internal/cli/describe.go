package cli

import (
	"github.com/spf13/cobra"

	"github.com/bencan1a/calendarbot/internal/store"
)

func newDescribeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Report on-disk cache facts: size, journal mode, per-date event counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)

			s, err := store.Open(opts.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			desc, err := s.Describe(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "describe database", err)
			}

			return formatter.Success(desc)
		},
	}
}
