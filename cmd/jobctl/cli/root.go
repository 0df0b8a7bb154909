// Package cli implements jobctl's cobra command tree.
package cli

import (
	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobs"
	"github.com/meridianfs/core/library"
	"github.com/meridianfs/core/pkg/config"
	"github.com/meridianfs/core/pkg/logger"
	"github.com/spf13/cobra"
)

var journalPath string

var rootCmd = &cobra.Command{
	Use:   "jobctl",
	Short: "jobctl - operate a local job system library from the shell",
	Long: `jobctl opens a job system library backed by a local journal file
and lets an operator dispatch, pause, resume, cancel, and inspect jobs.

Examples:
  jobctl dispatch echo '{"message":"hello"}'
  jobctl list
  jobctl status <job-id>
  jobctl pause <job-id>
  jobctl resume <job-id>
  jobctl cancel <job-id>`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "path to the job journal file (default: config file or ./jobdata/journal)")

	rootCmd.AddCommand(newDispatchCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newCancelCmd())
}

// openLibrary loads the on-disk config (falling back to defaults),
// registers the bundled reference job types, and opens a library ready
// for one command's worth of work.
func openLibrary() (*library.Library, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	path := journalPath
	if path == "" {
		path = cfg.Store.JournalPath
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	log := logger.NewWithConfig(logger.Config{Level: level, Format: cfg.Logging.Format})

	registry := job.NewRegistry()
	jobs.RegisterAll(registry)

	return library.Open(library.Config{
		ID:             "jobctl",
		JournalPath:    path,
		SyncWrites:     cfg.Store.SyncWrites,
		WorkerPoolSize: cfg.Scheduler.WorkerPoolSize,
		TypeLimits:     cfg.Scheduler.TypeLimits,
		ShutdownGrace:  cfg.Shutdown.GraceWindow,
		Registry:       registry,
		Logger:         log,
	})
}
