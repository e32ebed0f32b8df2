package events

import "go.uber.org/zap"

// LogHandler returns a handler that writes every event to l at debug level.
// Subscribe it under Wildcard to trace the whole bus.
func LogHandler(l *zap.Logger) Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return func(e Event) error {
		l.Debug("event",
			zap.String("name", e.Name),
			zap.Uint64("seq", e.Seq),
			zap.Time("at", e.Timestamp),
			zap.Any("payload", e.Payload))
		return nil
	}
}
