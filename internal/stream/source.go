// Package stream provides frame sources: recorded or live video decoded with
// GStreamer, and a synthetic source for tests and dry runs.
package stream

import (
	"context"
	"io"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// ErrEndOfStream is returned by Read once every source is exhausted or the
// source was closed
var ErrEndOfStream = io.EOF

// Source yields decoded BGR frames one at a time. Read is safe for
// concurrent use; each call returns a distinct frame.
type Source interface {
	// Read blocks until the next frame is decoded
	Read(ctx context.Context) (types.Frame, error)

	// SetCopyOnRead makes every frame own its pixel buffer. When false the
	// buffer of a returned frame may be reused by the next Read.
	SetCopyOnRead(bool)

	IsLivestream() bool

	// Position reports the current source index and frame position
	Position() (stream int, frame int64)

	// SetStreamIndex and SetFramePos select where reading starts. They take
	// effect for sources not yet opened.
	SetStreamIndex(int)
	SetFramePos(int64)

	Close() error
}
