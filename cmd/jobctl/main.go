// Command jobctl is a small demonstration CLI over the job system: it
// opens a library backed by a local journal file and lets an operator
// dispatch, pause, resume, cancel, and inspect jobs from a shell.
package main

import (
	"fmt"
	"os"

	"github.com/meridianfs/core/cmd/jobctl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
