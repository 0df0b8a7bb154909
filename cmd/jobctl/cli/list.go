package cli

import (
	"fmt"

	"github.com/meridianfs/core/jobstore"
	"github.com/spf13/cobra"
)

var (
	listStatus string
	listType   string
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status or type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}

			filter := jobstore.Filter{TypeName: listType}
			if listStatus != "" {
				filter.Statuses = []jobstore.Status{jobstore.Status(listStatus)}
			}

			records, err := lib.List(filter)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("no jobs")
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%-36s  %-14s  %-10s  priority=%d\n", rec.ID, rec.TypeName, rec.Status, rec.Priority)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listStatus, "status", "", "filter by status (e.g. running, paused, failed)")
	cmd.Flags().StringVar(&listType, "type", "", "filter by job type")
	return cmd
}
