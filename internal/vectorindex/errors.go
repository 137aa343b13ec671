package vectorindex

import "errors"

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyIndex        = errors.New("index contains no chunks")
	ErrCorruptArtifact   = errors.New("corrupt index artifact")
)
