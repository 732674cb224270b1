package ports

import (
	"context"

	"scorekit/domain/frame"
)

// ChunkFunc processes one chunk. It must only write rows it owns.
type ChunkFunc func(ctx context.Context, chunk int) error

// ChunkExecutor runs fn once per chunk, possibly in parallel, and returns
// after every invocation finished. The first error cancels the rest.
type ChunkExecutor interface {
	DoAll(ctx context.Context, nChunks int, fn ChunkFunc) error
}

// ReadOptions controls frame ingestion
type ReadOptions struct {
	Sheet     string // xlsx sheet, first sheet when empty
	ChunkRows int
	// Categorical forces the named columns to be read as categorical.
	Categorical []string
}

// FrameReader loads tabular files into frames
type FrameReader interface {
	ReadFrame(ctx context.Context, path string, opts ReadOptions) (*frame.Frame, error)
}
