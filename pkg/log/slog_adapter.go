package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Host != "" {
		attrs = append(attrs, slog.String("host", event.Host))
	}
	if event.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", event.Endpoint))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
			slog.Uint64("epoch", event.StateChange.Epoch),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Link != nil:
		attrs = append(attrs, slog.String("action", event.Link.Action.String()))
		if event.Link.Err != "" {
			attrs = append(attrs, slog.String("link_error", event.Link.Err))
		}
	case event.Auth != nil:
		attrs = append(attrs,
			slog.String("trigger", event.Auth.Trigger.String()),
			slog.Bool("success", event.Auth.Success),
		)
		if event.Auth.Expiry != nil {
			attrs = append(attrs, slog.Time("expiry", *event.Auth.Expiry))
		}
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.String("msg_id", event.Message.MessageID),
			slog.Int("size", event.Message.Size),
		)
		if event.Message.To != "" {
			attrs = append(attrs, slog.String("to", event.Message.To))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Kind != "" {
			attrs = append(attrs, slog.String("error_kind", event.Error.Kind))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
