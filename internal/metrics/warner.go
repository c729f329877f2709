package metrics

import (
	"strings"

	"go.uber.org/zap"

	"odin-dobj/internal/wire"
)

// CodecWarner adapts a Registry's codec counters and a zap logger into a
// wire.Warner, so every codec warning is both logged with context and
// counted by cause (SPEC_FULL.md §6 "Structured codec-warning counters").
type CodecWarner struct {
	Registry *Registry
	Logger   *zap.Logger
}

func (w *CodecWarner) Warn(warning *wire.Warning) {
	if w.Logger != nil {
		fields := []zap.Field{zap.String("context", warning.Context), zap.String("cause", warning.Cause)}
		if warning.Err != nil {
			fields = append(fields, zap.Error(warning.Err))
		}
		w.Logger.Warn("codec warning", fields...)
	}
	if w.Registry == nil {
		return
	}
	switch {
	case strings.Contains(warning.Cause, "wire-type"):
		w.Registry.Codec.WireTypeMismatch.Inc()
	case strings.Contains(warning.Cause, "tuple"):
		w.Registry.Codec.BadTupleLength.Inc()
	case strings.Contains(warning.Cause, "subtype"):
		w.Registry.Codec.UnknownSubtype.Inc()
	case strings.Contains(warning.Cause, "unknown field"):
		w.Registry.Codec.UnknownField.Inc()
	}
}
