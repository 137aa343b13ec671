package vectorindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names. An index is persisted as exactly two files under a
// collection-scoped "index/" prefix in the blob store; both are required
// to reconstruct the index.
const (
	VectorsFile = "index.vec"
	MetaFile    = "index.meta"

	// ArtifactPrefix is the path segment under a collection identifier
	// where both artifact files live.
	ArtifactPrefix = "index"
)

// ArtifactFiles lists the files required to load an index.
var ArtifactFiles = []string{VectorsFile, MetaFile}

// vectorsArtifact is the on-disk form of the embedding matrix.
type vectorsArtifact struct {
	Dimension int
	Vectors   [][]float32
}

// metaArtifact is the on-disk form of the chunk metadata and lookup data.
type metaArtifact struct {
	Model  string
	Chunks []Chunk
}

// Save writes the index's two artifact files into dir.
func (idx *Index) Save(dir string) error {
	if err := writeGob(filepath.Join(dir, VectorsFile), vectorsArtifact{
		Dimension: idx.dimension,
		Vectors:   idx.vectors,
	}); err != nil {
		return fmt.Errorf("write vectors artifact: %w", err)
	}
	if err := writeGob(filepath.Join(dir, MetaFile), metaArtifact{
		Model:  idx.model,
		Chunks: idx.chunks,
	}); err != nil {
		return fmt.Errorf("write metadata artifact: %w", err)
	}
	return nil
}

// Load reads both artifact files from dir and reconstructs the index.
// The artifacts are validated for internal consistency: the chunk count
// must match the vector count, and every vector must have the declared
// dimension.
func Load(dir string) (*Index, error) {
	var vecs vectorsArtifact
	if err := readGob(filepath.Join(dir, VectorsFile), &vecs); err != nil {
		return nil, fmt.Errorf("read vectors artifact: %w", err)
	}
	var meta metaArtifact
	if err := readGob(filepath.Join(dir, MetaFile), &meta); err != nil {
		return nil, fmt.Errorf("read metadata artifact: %w", err)
	}

	if len(meta.Chunks) != len(vecs.Vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors",
			ErrCorruptArtifact, len(meta.Chunks), len(vecs.Vectors))
	}
	if len(meta.Chunks) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, ErrEmptyIndex)
	}
	for i, v := range vecs.Vectors {
		if len(v) != vecs.Dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrCorruptArtifact, i, len(v), vecs.Dimension)
		}
	}

	return &Index{
		dimension: vecs.Dimension,
		model:     meta.Model,
		chunks:    meta.Chunks,
		vectors:   vecs.Vectors,
	}, nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
