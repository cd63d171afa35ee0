package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region retriever
// Retriever chunks documents, indexes their embeddings, and answers
// nearest-neighbour queries. Insertion is serialized against retrieval.
type Retriever struct {
	embedder capability.Embedder
	config   RetrievalConfig
	logger   *zap.Logger

	mu     sync.RWMutex
	chunks []Chunk
	index  *FlatIndex
}

// NewRetriever creates a Retriever. A nil embedder yields a retriever that
// returns no context.
func NewRetriever(embedder capability.Embedder, config RetrievalConfig, logger *zap.Logger) (*Retriever, error) {
	if config.ChunkSize < 1 || config.Stride() < 1 {
		return nil, fmt.Errorf("new retriever: %w (size=%d overlap=%d)", ErrInvalidStride, config.ChunkSize, config.ChunkOverlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		config:   config,
		logger:   logger.Named("retrieval"),
		index:    NewFlatIndex(0),
	}, nil
}

// Len returns the number of indexed chunks.
func (r *Retriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks)
}

// Chunks returns a copy of the indexed chunks in insertion order.
func (r *Retriever) Chunks() []Chunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chunk, len(r.chunks))
	copy(out, r.chunks)
	return out
}

// #endregion retriever

// #region add-documents
// AddDocuments chunks and indexes docs. metadata[i], when present, is
// attached to every chunk of docs[i]. Returns the number of chunks added.
func (r *Retriever) AddDocuments(ctx context.Context, docs []string, metadata []map[string]string) (int, error) {
	if r.embedder == nil {
		return 0, fmt.Errorf("add documents: no embedder attached")
	}

	var texts []string
	var metas []map[string]string
	for idx, doc := range docs {
		meta := documentMetadata(idx, metadata)
		for _, c := range ChunkText(doc, r.config.ChunkSize, r.config.Stride()) {
			texts = append(texts, c)
			metas = append(metas, meta)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	r.logger.Info("embedding chunks", zap.Int("documents", len(docs)), zap.Int("chunks", len(texts)))
	vectors, err := r.embedAll(ctx, texts)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.index.Add(vectors); err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}
	base := len(r.chunks)
	for i, text := range texts {
		r.chunks = append(r.chunks, Chunk{ID: base + i, Text: text, Metadata: metas[i]})
	}
	r.logger.Info("knowledge base updated", zap.Int("total_chunks", len(r.chunks)))
	return len(texts), nil
}

// embedAll embeds texts with bounded concurrency, preserving order.
func (r *Retriever) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	workers := r.config.EmbedWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			v, err := r.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// #endregion add-documents

// #region retrieve
// Retrieve returns the text of the k most similar chunks, most similar
// first. k <= 0 uses the configured TopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []string {
	results := r.Search(ctx, query, k)
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = res.Chunk.Text
	}
	return out
}

// Search is Retrieve with distances and metadata. Failures are logged and
// yield no results.
func (r *Retriever) Search(ctx context.Context, query string, k int) []Result {
	if k <= 0 {
		k = r.config.TopK
	}
	if r.embedder == nil || r.Len() == 0 {
		r.logger.Debug("no documents in knowledge base")
		return []Result{}
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("query embedding failed", zap.Error(err))
		return []Result{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	hits, err := r.index.Search(vec, k)
	if err != nil {
		r.logger.Error("index search failed", zap.Error(err))
		return []Result{}
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		sim := 1 / (1 + float64(h.Distance))
		if sim < r.config.SimilarityThreshold || h.ID >= len(r.chunks) {
			continue
		}
		results = append(results, Result{Chunk: r.chunks[h.ID], Distance: h.Distance, Similarity: sim})
	}
	r.logger.Debug("retrieved chunks", zap.Int("hits", len(hits)), zap.Int("kept", len(results)))
	return results
}

// #endregion retrieve

// #region load-directory
// LoadDirectory indexes every .txt file in dir, tagging chunks with
// {"source": filename}. A missing directory or one without text files is
// logged and indexes nothing.
func (r *Retriever) LoadDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("knowledge directory not found", zap.String("dir", dir))
			return 0, nil
		}
		return 0, fmt.Errorf("read knowledge dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		r.logger.Warn("no .txt files in knowledge directory", zap.String("dir", dir))
		return 0, nil
	}

	docs := make([]string, 0, len(names))
	metas := make([]map[string]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("read knowledge file %s: %w", name, err)
		}
		docs = append(docs, string(data))
		metas = append(metas, map[string]string{"source": name})
	}
	r.logger.Info("loading knowledge base", zap.String("dir", dir), zap.Int("files", len(docs)))
	return r.AddDocuments(ctx, docs, metas)
}

// #endregion load-directory
