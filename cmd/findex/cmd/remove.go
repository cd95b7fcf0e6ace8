package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <doc-id>...",
		Short: "Remove documents from the index",
		Long: `Tombstones every index entry of the given documents, including
all chunks, and drops their chunk records. Vector graph space is
reclaimed on the next full reindex, not immediately.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, root, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, root)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, docID := range args {
				count, err := a.service.RemoveDocument(ctx, docID)
				if err != nil {
					return err
				}
				if count == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "not found: %s\n", docID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s (%d entries)\n", docID, count)
				}
			}

			return a.manager.Save(ctx)
		},
	}
	return cmd
}
