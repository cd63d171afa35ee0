package retrieval

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// IndexFile holds the vectors.
	IndexFile = "index.bin"
	// ChunkFile holds chunk text and metadata.
	ChunkFile = "chunks.db"

	indexMagic   = "CTIX"
	indexVersion = uint32(1)
	headerSize   = 4 + 4 + 16 + 4 + 4
)

// #region schema
const chunkSchema = `
CREATE TABLE IF NOT EXISTS index_meta (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	pair_id       TEXT NOT NULL,
	dim           INTEGER NOT NULL,
	chunk_count   INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id            INTEGER PRIMARY KEY,
	text          TEXT NOT NULL,
	metadata_json TEXT NOT NULL
);
`

// #endregion schema

// #region save
// SaveIndex writes index.bin and chunks.db into dir, stamped with a shared
// pair ID. An empty index is logged and nothing is written.
func (r *Retriever) SaveIndex(dir string) error {
	r.mu.RLock()
	chunks := make([]Chunk, len(r.chunks))
	copy(chunks, r.chunks)
	dim := r.index.Dim()
	vectors := r.index.vectors
	r.mu.RUnlock()

	if len(chunks) == 0 {
		r.logger.Warn("no index to save")
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	pairID := uuid.New()
	if err := writeIndexFile(filepath.Join(dir, IndexFile), pairID, dim, vectors); err != nil {
		return err
	}
	if err := writeChunkStore(filepath.Join(dir, ChunkFile), pairID, dim, chunks); err != nil {
		return err
	}
	r.logger.Info("index saved", zap.String("dir", dir), zap.Int("chunks", len(chunks)), zap.String("pair_id", pairID.String()))
	return nil
}

func writeIndexFile(path string, pairID uuid.UUID, dim int, vectors [][]float32) error {
	buf := make([]byte, headerSize, headerSize+len(vectors)*dim*4)
	copy(buf[0:4], indexMagic)
	binary.LittleEndian.PutUint32(buf[4:8], indexVersion)
	copy(buf[8:24], pairID[:])
	binary.LittleEndian.PutUint32(buf[24:28], uint32(dim))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(vectors)))
	for _, v := range vectors {
		buf = append(buf, encodeVector(v)...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	return nil
}

func writeChunkStore(path string, pairID uuid.UUID, dim int, chunks []Chunk) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace chunk store: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer db.Close()
	if _, err := db.Exec(chunkSchema); err != nil {
		return fmt.Errorf("migrate chunk store: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO index_meta (id, pair_id, dim, chunk_count, created_at) VALUES (1, ?, ?, ?, ?)`,
		pairID.String(), dim, len(chunks), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert index meta: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks (id, text, metadata_json) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk %d metadata: %w", c.ID, err)
		}
		if _, err := stmt.Exec(c.ID, c.Text, string(meta)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk store: %w", err)
	}
	return nil
}

// #endregion save

// #region load
// LoadIndex replaces the retriever's contents with the pair stored in dir.
// Both artifacts must be present and carry the same pair ID and count.
func (r *Retriever) LoadIndex(dir string) error {
	indexPath := filepath.Join(dir, IndexFile)
	chunkPath := filepath.Join(dir, ChunkFile)
	for _, p := range []string{indexPath, chunkPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load index: %w: %s", ErrMissingArtifact, p)
			}
			return fmt.Errorf("load index: stat %s: %w", p, err)
		}
	}

	pairID, dim, vectors, err := readIndexFile(indexPath)
	if err != nil {
		return err
	}
	storedPair, storedDim, chunks, err := readChunkStore(chunkPath)
	if err != nil {
		return err
	}
	if storedPair != pairID.String() {
		return fmt.Errorf("load index: %w: index pair %s, chunk pair %s", ErrIndexPairMismatch, pairID, storedPair)
	}
	if storedDim != dim || len(chunks) != len(vectors) {
		return fmt.Errorf("load index: %w: %d vectors of dim %d, %d chunks of dim %d",
			ErrIndexPairMismatch, len(vectors), dim, len(chunks), storedDim)
	}

	index := NewFlatIndex(dim)
	if err := index.Add(vectors); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	r.mu.Lock()
	r.chunks = chunks
	r.index = index
	r.mu.Unlock()
	r.logger.Info("index loaded", zap.String("dir", dir), zap.Int("chunks", len(chunks)))
	return nil
}

func readIndexFile(path string) (uuid.UUID, int, [][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uuid.Nil, 0, nil, fmt.Errorf("read index file: %w", err)
	}
	if len(data) < headerSize || string(data[0:4]) != indexMagic {
		return uuid.Nil, 0, nil, fmt.Errorf("read index file: %w: bad header", ErrCorruptIndex)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != indexVersion {
		return uuid.Nil, 0, nil, fmt.Errorf("read index file: %w: unsupported version %d", ErrCorruptIndex, v)
	}
	var pairID uuid.UUID
	copy(pairID[:], data[8:24])
	dim := int(binary.LittleEndian.Uint32(data[24:28]))
	count := int(binary.LittleEndian.Uint32(data[28:32]))

	body := data[headerSize:]
	if dim == 0 {
		if count > 0 || len(body) > 0 {
			return uuid.Nil, 0, nil, fmt.Errorf("read index file: %w: %d vectors of dim 0", ErrCorruptIndex, count)
		}
		return pairID, 0, nil, nil
	}
	// Divide rather than multiply so a hostile header cannot overflow.
	stride := uint64(dim) * 4
	if n := uint64(len(body)); n%stride != 0 || n/stride != uint64(count) {
		return uuid.Nil, 0, nil, fmt.Errorf("read index file: %w: header claims %d vectors of dim %d, body holds %d bytes",
			ErrCorruptIndex, count, dim, len(body))
	}
	vectors := make([][]float32, count)
	for i := range vectors {
		off := i * dim * 4
		vectors[i] = decodeVector(body[off : off+dim*4])
	}
	return pairID, dim, vectors, nil
}

func readChunkStore(path string) (string, int, []Chunk, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("open chunk store: %w", err)
	}
	defer db.Close()

	var pairID string
	var dim, count int
	err = db.QueryRow(`SELECT pair_id, dim, chunk_count FROM index_meta WHERE id = 1`).Scan(&pairID, &dim, &count)
	if err != nil {
		return "", 0, nil, fmt.Errorf("read index meta: %w", err)
	}

	rows, err := db.Query(`SELECT id, text, metadata_json FROM chunks ORDER BY id`)
	if err != nil {
		return "", 0, nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var meta string
		if err := rows.Scan(&c.ID, &c.Text, &meta); err != nil {
			return "", 0, nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return "", 0, nil, fmt.Errorf("unmarshal chunk %d metadata: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return "", 0, nil, fmt.Errorf("iterate chunks: %w", err)
	}
	if len(chunks) != count {
		return "", 0, nil, fmt.Errorf("read chunk store: %w: meta says %d chunks, found %d", ErrIndexPairMismatch, count, len(chunks))
	}
	return pairID, dim, chunks, nil
}

// #endregion load

// #region helpers
// encodeVector serializes a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion helpers
