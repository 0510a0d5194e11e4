// Package observability provides logging, metrics, and tracing.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// WSLogger emits structured lifecycle events for the messaging channel.
// Conversations are user-to-user, so entries carry user IDs rather than room
// identifiers. Per-frame logging stays at debug level to keep volume down on
// busy connections.
type WSLogger struct {
	logger *slog.Logger
}

// NewWSLogger returns a logger writing JSON lines to w. Pass os.Stdout for
// production wiring; nil falls back to os.Stdout as well.
func NewWSLogger(w io.Writer) *WSLogger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &WSLogger{logger: slog.New(handler)}
}

// Connected records a successful registration on the hub.
func (l *WSLogger) Connected(userID uint, username string) {
	l.logger.Info("channel connected",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("username", username),
	)
}

// Disconnected records the end of a connection's read loop.
func (l *WSLogger) Disconnected(userID uint) {
	l.logger.Info("channel disconnected", slog.Uint64("user_id", uint64(userID)))
}

// Rejected records a connection that never made it onto the hub. userID is
// zero when the upgrade was unauthenticated.
func (l *WSLogger) Rejected(userID uint, reason string) {
	l.logger.Warn("channel rejected",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// Frame records one decoded client frame.
func (l *WSLogger) Frame(userID uint, frameType string) {
	l.logger.Debug("channel frame",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("frame_type", frameType),
	)
}

// Failure records an operation that errored mid-connection.
func (l *WSLogger) Failure(userID uint, op string, err error) {
	l.logger.Error("channel failure",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
