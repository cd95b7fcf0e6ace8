package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/findex-dev/findex/internal/index"
)

// statsOutput is the combined stats payload for JSON output.
type statsOutput struct {
	Index        index.Stats `json:"index"`
	ChunkRecords int         `json:"chunk_records"`
}

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
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

			records, err := a.metadata.CountChunkRecords(ctx)
			if err != nil {
				return err
			}
			payload := statsOutput{
				Index:        a.manager.Stats(),
				ChunkRecords: records,
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			fmt.Fprintf(out, "Index directory:  %s\n", payload.Index.Dir)
			fmt.Fprintf(out, "Documents:        %d\n", payload.Index.Documents)
			fmt.Fprintf(out, "Vectors:          %d\n", payload.Index.VectorSize)
			fmt.Fprintf(out, "Text entries:     %d\n", payload.Index.TextSize)
			fmt.Fprintf(out, "Tombstones:       %d\n", payload.Index.Tombstones)
			fmt.Fprintf(out, "Chunk records:    %d\n", payload.ChunkRecords)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
