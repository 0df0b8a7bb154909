package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/scheduler"
	"github.com/spf13/cobra"
)

var (
	dispatchPriority int32
	dispatchParentID string
)

func newDispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch <type> <params-json>",
		Short: "Dispatch a new job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName, paramsJSON := args[0], args[1]

			if !json.Valid([]byte(paramsJSON)) {
				return fmt.Errorf("params must be valid JSON")
			}

			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer closeQuietly(lib)

			id, err := lib.Dispatch(job.TypeName(typeName), json.RawMessage(paramsJSON), scheduler.DispatchOptions{
				Priority: dispatchPriority,
				ParentID: dispatchParentID,
			})
			if err != nil {
				return err
			}

			waitForAdmission(lib, id, time.Second)

			fmt.Println(id)
			return nil
		},
	}

	cmd.Flags().Int32Var(&dispatchPriority, "priority", 0, "dispatch priority (higher runs first)")
	cmd.Flags().StringVar(&dispatchParentID, "parent", "", "parent job id, for cascade-cancel")
	return cmd
}
