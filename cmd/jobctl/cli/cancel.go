package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job, cascading to its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer closeQuietly(lib)

			if err := lib.Cancel(args[0]); err != nil {
				return err
			}

			fmt.Printf("cancel requested for %s\n", args[0])
			return nil
		},
	}
}
