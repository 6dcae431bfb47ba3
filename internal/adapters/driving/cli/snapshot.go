package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var snapshotForce bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage index snapshots",
	Long:  `Save, load, or inspect the persisted copy of the vector index.`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write a snapshot of the index",
	Long: `Writes the index to the configured snapshot backend. Without --force
the write is skipped when nothing changed since the last save or load.`,
	Args: cobra.NoArgs,
	RunE: runSnapshotSave,
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace the index with the stored snapshot",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotLoad,
}

var snapshotStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotStats,
}

func init() {
	snapshotSaveCmd.Flags().BoolVarP(&snapshotForce, "force", "f", false, "write even if the index is unchanged")

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotLoadCmd)
	snapshotCmd.AddCommand(snapshotStatsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshotSave(cmd *cobra.Command, _ []string) error {
	if snapshotService == nil {
		return errors.New("snapshot service not configured")
	}

	save := snapshotService.SaveIfChanged
	if snapshotForce {
		save = snapshotService.Save
	}

	res, err := save(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if res.Skipped {
		cmd.Println("Index unchanged since last save, nothing written.")
		return nil
	}

	cmd.Printf("Saved %d entries (%d bytes) to %s\n", res.Entries, res.Bytes, res.Location)
	return nil
}

func runSnapshotLoad(cmd *cobra.Command, _ []string) error {
	if snapshotService == nil {
		return errors.New("snapshot service not configured")
	}

	res, err := snapshotService.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	switch res.Outcome {
	case domain.SnapshotRestored:
		cmd.Printf("Restored %d entries from snapshot written %s\n",
			res.Entries, res.Timestamp.Format(timeFormat))
	case domain.SnapshotMissing:
		cmd.Println("No snapshot found. The index is empty.")
	case domain.SnapshotCorrupted:
		cmd.Printf("%s %v\n", warnStyle.Render("Snapshot is corrupted, index reset:"), res.Err)
		cmd.Println("Run 'recall index --rebuild' to reload stored embeddings.")
	}
	return nil
}

func runSnapshotStats(cmd *cobra.Command, _ []string) error {
	if snapshotService == nil {
		return errors.New("snapshot service not configured")
	}

	st := snapshotService.Stats()
	cmd.Println(headingStyle.Render("Index:"))
	cmd.Printf("  Entries:    %d\n", st.Entries)
	cmd.Printf("  Documents:  %d\n", st.Documents)
	cmd.Printf("  Dimension:  %d\n", st.Dimension)
	cmd.Printf("  Generation: %d\n", st.Generation)
	return nil
}
