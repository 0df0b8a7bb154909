package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's current record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}

			rec, err := lib.Get(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("id:        %s\n", rec.ID)
			fmt.Printf("type:      %s\n", rec.TypeName)
			fmt.Printf("status:    %s\n", rec.Status)
			fmt.Printf("priority:  %d\n", rec.Priority)
			if rec.ParentID != "" {
				fmt.Printf("parent:    %s\n", rec.ParentID)
			}
			fmt.Printf("created:   %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			if rec.StartedAt != nil {
				fmt.Printf("started:   %s\n", rec.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			if rec.CompletedAt != nil {
				fmt.Printf("completed: %s\n", rec.CompletedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			if rec.LastProgress.Message != "" || rec.LastProgress.Percentage > 0 {
				fmt.Printf("progress:  %s (%.0f%%)\n", rec.LastProgress.Message, rec.LastProgress.Percentage*100)
			}
			if rec.Error != "" {
				fmt.Printf("error:     %s\n", rec.Error)
			}
			return nil
		},
	}
}
