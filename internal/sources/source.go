// Package sources provides the pluggable frame producers that feed a
// ProcessingGraph's Input node: live device capture, WAV file replay, a
// trivial mock generator, and the physics simulator. All four share the
// same Source contract so the driver loop never needs to know which one
// it's pulling from.
package sources

import (
	"context"

	"github.com/tracegas/pagraph/internal/frame"
)

// Source produces successive AudioFrames. NextFrame is the driver's only
// suspension point on the producer side: it blocks until a frame is ready,
// the context is cancelled, or the source is exhausted (io.EOF-equivalent
// via ErrExhausted).
type Source interface {
	NextFrame(ctx context.Context) (frame.AudioFrame, error)
	Close() error
}

// ErrExhausted is returned by NextFrame when a finite source (WAV replay)
// has no more frames and no replay loop is configured.
type errExhausted struct{}

func (errExhausted) Error() string { return "source exhausted" }

// ErrExhausted is the sentinel a finite source returns once done.
var ErrExhausted error = errExhausted{}
