package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/retrieval"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexSource string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the knowledge base index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the knowledge base directory and persist the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer b.close()

		r, err := retrieval.NewRetriever(b.embedder, cfg.RetrievalConfig(), logger)
		if err != nil {
			return err
		}
		src := cfg.Retrieval.KnowledgeBasePath
		if indexSource != "" {
			src = indexSource
		}
		start := time.Now()
		n, err := r.LoadDirectory(ctx, src)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no chunks indexed from %s", src)
		}
		if err := r.SaveIndex(cfg.Retrieval.IndexDir); err != nil {
			return err
		}
		logger.Info("index built", zap.Int("chunks", n), zap.Duration("took", time.Since(start)))
		fmt.Fprintf(stdout(cmd), "indexed %s chunks from %s into %s\n", humanize.Comma(int64(n)), src, cfg.Retrieval.IndexDir)
		return nil
	},
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the persisted index",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Retrieval.IndexDir
		w := stdout(cmd)
		for _, name := range []string{retrieval.IndexFile, retrieval.ChunkFile} {
			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil {
				fmt.Fprintf(w, "%-10s  missing\n", name)
				continue
			}
			fmt.Fprintf(w, "%-10s  %8s  modified %s\n", name, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
		}

		// Loading validates the pair without embedding anything.
		r, err := retrieval.NewRetriever(nil, cfg.RetrievalConfig(), logger)
		if err != nil {
			return err
		}
		if err := r.LoadIndex(dir); err != nil {
			return err
		}
		sources := map[string]int{}
		for _, c := range r.Chunks() {
			sources[c.Metadata["source"]]++
		}
		fmt.Fprintf(w, "\n%s chunks from %d sources\n", humanize.Comma(int64(r.Len())), len(sources))
		return nil
	},
}

func init() {
	indexBuildCmd.Flags().StringVar(&indexSource, "source", "", "Directory of .txt files (defaults to retrieval.knowledge_base_path)")
	indexCmd.AddCommand(indexBuildCmd, indexInfoCmd)
	rootCmd.AddCommand(indexCmd)
}
