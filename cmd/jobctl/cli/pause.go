package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <job-id>",
		Short: "Request a cooperative pause on a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer closeQuietly(lib)

			if err := lib.Pause(args[0]); err != nil {
				return err
			}

			fmt.Printf("pause requested for %s\n", args[0])
			return nil
		},
	}
}
