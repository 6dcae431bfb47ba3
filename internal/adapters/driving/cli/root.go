// Package cli provides the recall command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// skipServicesAnnotation marks commands that run without the service graph.
const skipServicesAnnotation = "recall/skip-services"

// Services holds the driving ports the commands run against.
type Services struct {
	Search    driving.SearchService
	Document  driving.DocumentService
	Indexing  driving.IndexingService
	Snapshot  driving.SnapshotService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler

	// Warnings are printed once before the command runs.
	Warnings []string
}

// Bootstrap builds the service graph. The returned function releases it.
type Bootstrap func(ctx context.Context) (*Services, func(), error)

var (
	searchService   driving.SearchService
	documentService driving.DocumentService
	indexingService driving.IndexingService
	snapshotService driving.SnapshotService
	settingsService driving.SettingsService
	scheduler       driving.Scheduler
)

var (
	version   = "dev"
	bootstrap Bootstrap
	release   func()

	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Semantic retrieval over your documents",
	Long: `Recall indexes documents into a vector index and answers natural
language queries with freshness-aware ranking.

Documents are chunked, embedded with the configured provider and kept in
memory. The index is snapshotted to a local file or an object store so it
survives restarts.`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
}

// SetServices installs the driving ports used by every command.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	searchService = s.Search
	documentService = s.Document
	indexingService = s.Indexing
	snapshotService = s.Snapshot
	settingsService = s.Settings
	scheduler = s.Scheduler
}

// Execute runs the root command. The bootstrap is invoked lazily, only for
// commands that need services.
func Execute(ctx context.Context, v string, b Bootstrap) error {
	if v != "" {
		version = v
	}
	bootstrap = b
	defer func() {
		bootstrap = nil
		if release != nil {
			release()
			release = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func prepare(cmd *cobra.Command, _ []string) error {
	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return err
	}
	logger.SetFormat(format)
	logger.SetVerbose(verbose)

	if !needsServices(cmd) || bootstrap == nil || settingsService != nil {
		return nil
	}

	svcs, cleanup, err := bootstrap(cmd.Context())
	if err != nil {
		return fmt.Errorf("initialise services: %w", err)
	}
	release = cleanup
	SetServices(svcs)
	for _, w := range svcs.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}
	return nil
}

func needsServices(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipServicesAnnotation] == "true" {
			return false
		}
	}
	return true
}

// persistSnapshot writes the index after a mutating command. A failed save
// is reported but does not fail the command.
func persistSnapshot(cmd *cobra.Command) {
	if snapshotService == nil {
		return
	}
	res, err := snapshotService.SaveIfChanged(cmd.Context())
	if err != nil {
		cmd.PrintErrf("Warning: snapshot not saved: %v\n", err)
		return
	}
	if !res.Skipped {
		logger.Debug("snapshot saved", "entries", res.Entries, "location", res.Location)
	}
}
