package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/findex-dev/findex/internal/chunk"
	"github.com/findex-dev/findex/internal/ingest"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Index documents",
		Long: `Reads each file and indexes its content. Documents above the
chunking threshold are split into overlapping chunks first. The
document id is the file path relative to the project directory.

Re-indexing an existing document replaces its previous entries.

Examples:
  findex index notes/meeting.md
  findex index docs/*.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args)
		},
	}
	return cmd
}

func runIndex(cmd *cobra.Command, paths []string) error {
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

	start := time.Now()
	indexed := 0
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("file_read_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		docID := docIDFor(root, path)
		// Replace any previous version of this document.
		if _, err := a.service.RemoveDocument(ctx, docID); err != nil {
			slog.Warn("document_replace_failed",
				slog.String("doc_id", docID),
				slog.String("error", err.Error()))
		}

		result, err := a.service.IndexDocument(ctx, &ingest.Document{
			ID:          docID,
			Content:     string(content),
			ContentType: contentTypeFor(path),
			Metadata:    map[string]string{"path": path},
		})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", path, err)
			continue
		}

		indexed++
		if result.Chunked {
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d chunks, %d failed)\n",
				docID, len(result.Chunks), result.Failed)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", docID)
		}
	}

	if err := a.manager.Save(ctx); err != nil {
		return err
	}

	stats := a.service.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "done: %d/%d documents in %s (%d chunks total)\n",
		indexed, len(paths), time.Since(start).Round(time.Millisecond), stats.TotalChunksCreated)
	return nil
}

// docIDFor derives a stable document id from the file path.
func docIDFor(root, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func contentTypeFor(path string) chunk.ContentType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return chunk.ContentTypeMarkdown
	case ".go", ".py", ".js", ".ts", ".rs", ".java", ".c", ".h", ".rb":
		return chunk.ContentTypeCode
	default:
		return chunk.ContentTypeText
	}
}
