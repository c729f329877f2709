package wire

import "fmt"

// Warning describes a non-fatal codec failure (spec.md §4.1 "Failure
// modes", §7 "Codec warnings"). Warnings are never returned as hard errors
// from a decode path that can recover by skipping; they are reported
// through a Warner so the caller can log/count them with context.
type Warning struct {
	Context string // caller-supplied: e.g. "Room.roomName", "decode SetAdd"
	Cause   string // e.g. "wire-type mismatch", "unknown subtype", "bad tuple length"
	Err     error
}

func (w *Warning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %s: %v", w.Context, w.Cause, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Context, w.Cause)
}

// Warner receives codec warnings. Implementations must not block; the
// typical implementation logs through zap and increments a Prometheus
// counter keyed by Cause (see internal/metrics).
type Warner interface {
	Warn(w *Warning)
}

// WarnerFunc adapts a function to a Warner.
type WarnerFunc func(w *Warning)

func (f WarnerFunc) Warn(w *Warning) { f(w) }

// DiscardWarner drops every warning. Useful in tests that only care about
// round-trip behaviour.
var DiscardWarner Warner = WarnerFunc(func(*Warning) {})

// ErrBufferUnderrun is returned by Reader methods when the buffer ends
// before the expected bytes are available.
var ErrBufferUnderrun = fmt.Errorf("wire: buffer underrun")

// ErrMalformedVarint is returned when a varint never terminates within the
// remaining buffer.
var ErrMalformedVarint = fmt.Errorf("wire: malformed varint")
