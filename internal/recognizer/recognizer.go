// Package recognizer runs image recognizers on frames. The recognition
// itself happens out of process; this package owns the transport and the
// mapping of wire results onto recognizer kinds.
package recognizer

import (
	"context"
	"errors"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// ErrClosed is returned by Recognize after Close
var ErrClosed = errors.New("recognizer closed")

// Recognizer runs the recognizers armed in mask on frame. Results only ever
// carry armed kinds. Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, frame types.Frame, armed types.KindSet) ([]types.Result, error)
}

// Func adapts a function to Recognizer
type Func func(ctx context.Context, frame types.Frame, armed types.KindSet) ([]types.Result, error)

func (f Func) Recognize(ctx context.Context, frame types.Frame, armed types.KindSet) ([]types.Result, error) {
	return f(ctx, frame, armed)
}

// Script returns a Recognizer replaying scripted results by frame sequence.
// Frames without a script entry yield nothing; unarmed kinds are filtered.
func Script(results map[uint64][]types.Result) Recognizer {
	return Func(func(_ context.Context, frame types.Frame, armed types.KindSet) ([]types.Result, error) {
		return filterArmed(results[frame.Seq], armed), nil
	})
}

func filterArmed(results []types.Result, armed types.KindSet) []types.Result {
	var out []types.Result
	for _, r := range results {
		if armed.Has(r.Source) {
			out = append(out, r)
		}
	}
	return out
}
