package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const (
	indexMagic   = "PDFRAGIX"
	indexVersion = 1
)

// Snapshot is an index together with the chunks its positions refer to.
// Chunks[i] is the text of Index.Vector(i).
type Snapshot struct {
	ID             string
	Index          *Index
	Chunks         []string
	SourcePath     string
	SourceDigest   string
	ChunkSize      int
	EmbeddingModel string
	CreatedAt      time.Time
}

// indexFile is the msgpack encoded index artifact.
type indexFile struct {
	Magic      string      `msgpack:"magic"`
	Version    int         `msgpack:"version"`
	SnapshotID string      `msgpack:"snapshot_id"`
	Dim        int         `msgpack:"dim"`
	Count      int         `msgpack:"count"`
	Vectors    [][]float32 `msgpack:"vectors"`
}

// metadataFile is the JSON encoded chunk list artifact.
type metadataFile struct {
	SnapshotID     string    `json:"snapshot_id"`
	SourcePath     string    `json:"source_path"`
	SourceDigest   string    `json:"source_sha256"`
	ChunkSize      int       `json:"chunk_size"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
	Chunks         []string  `json:"chunks"`
}

// Persist writes the index artifact, then the metadata artifact. Both carry
// the snapshot ID, so a crash between the two writes leaves a pair that Load
// rejects. An empty s.ID is filled with a new random ID. Chunks must be valid
// UTF-8, since JSON cannot carry other bytes unchanged.
func Persist(s *Snapshot, indexPath, metadataPath string) error {
	if s.Index == nil || s.Index.Len() != len(s.Chunks) {
		n := 0
		if s.Index != nil {
			n = s.Index.Len()
		}
		return fmt.Errorf("%w: %d vectors for %d chunks", models.ErrCorruptData, n, len(s.Chunks))
	}
	for i, c := range s.Chunks {
		if !utf8.ValidString(c) {
			return fmt.Errorf("%w: chunk %d is not valid UTF-8", models.ErrCorruptData, i)
		}
	}
	if !utf8.ValidString(s.SourcePath) {
		return fmt.Errorf("%w: source path %q is not valid UTF-8", models.ErrCorruptData, s.SourcePath)
	}
	if s.ID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		s.ID = id
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	ixf := indexFile{
		Magic:      indexMagic,
		Version:    indexVersion,
		SnapshotID: s.ID,
		Dim:        s.Index.Dim(),
		Count:      s.Index.Len(),
		Vectors:    s.Index.vectors,
	}
	err := helper.WriteFileAtomic(indexPath, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(&ixf)
	})
	if err != nil {
		return fmt.Errorf("write index %s: %w", indexPath, err)
	}

	meta := metadataFile{
		SnapshotID:     s.ID,
		SourcePath:     s.SourcePath,
		SourceDigest:   s.SourceDigest,
		ChunkSize:      s.ChunkSize,
		EmbeddingModel: s.EmbeddingModel,
		CreatedAt:      s.CreatedAt,
		Chunks:         s.Chunks,
	}
	err = helper.WriteFileAtomic(metadataPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(&meta)
	})
	if err != nil {
		return fmt.Errorf("write metadata %s: %w", metadataPath, err)
	}

	log.Info().Str("snapshot", s.ID).Int("chunks", len(s.Chunks)).
		Str("index", indexPath).Str("metadata", metadataPath).Msg("Persisted snapshot")
	return nil
}

// Load reads and cross-checks both artifacts. A missing artifact is
// models.ErrNotFound; anything undecodable or inconsistent is
// models.ErrCorruptData.
func Load(indexPath, metadataPath string) (*Snapshot, error) {
	for _, path := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
	}

	var ixf indexFile
	if err := readArtifact(indexPath, func(r io.Reader) error {
		return msgpack.NewDecoder(r).Decode(&ixf)
	}); err != nil {
		return nil, err
	}
	var meta metadataFile
	if err := readArtifact(metadataPath, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&meta)
	}); err != nil {
		return nil, err
	}

	if ixf.Magic != indexMagic || ixf.Version != indexVersion {
		return nil, fmt.Errorf("%w: %s: unknown index format %q v%d", models.ErrCorruptData, indexPath, ixf.Magic, ixf.Version)
	}
	if ixf.SnapshotID == "" || ixf.SnapshotID != meta.SnapshotID {
		return nil, fmt.Errorf("%w: snapshot id mismatch: index %q, metadata %q", models.ErrCorruptData, ixf.SnapshotID, meta.SnapshotID)
	}
	if ixf.Count != len(ixf.Vectors) || ixf.Count != len(meta.Chunks) {
		return nil, fmt.Errorf("%w: index declares %d vectors, holds %d, metadata holds %d chunks",
			models.ErrCorruptData, ixf.Count, len(ixf.Vectors), len(meta.Chunks))
	}
	for i, v := range ixf.Vectors {
		if len(v) != ixf.Dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrCorruptData, i, len(v), ixf.Dim)
		}
	}

	ix := &Index{dim: ixf.Dim, vectors: ixf.Vectors}
	if ix.vectors == nil {
		ix.vectors = [][]float32{}
	}
	return &Snapshot{
		ID:             meta.SnapshotID,
		Index:          ix,
		Chunks:         meta.Chunks,
		SourcePath:     meta.SourcePath,
		SourceDigest:   meta.SourceDigest,
		ChunkSize:      meta.ChunkSize,
		EmbeddingModel: meta.EmbeddingModel,
		CreatedAt:      meta.CreatedAt,
	}, nil
}

// Exists reports whether both artifacts are present.
func Exists(indexPath, metadataPath string) bool {
	return fileExists(indexPath) && fileExists(metadataPath)
}

func readArtifact(path string, decode func(r io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, path)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := decode(f); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrCorruptData, path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
