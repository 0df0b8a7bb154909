package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Re-queue a paused job from its last checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer closeQuietly(lib)

			if err := lib.Resume(args[0]); err != nil {
				return err
			}

			waitForAdmission(lib, args[0], time.Second)

			fmt.Printf("resumed %s\n", args[0])
			return nil
		},
	}
}
