package tenantauth

import (
	"io"

	"github.com/MrEthical07/tenantauth/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant record. It never carries passwords,
// signatures, bearer tokens or one-time tokens.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LogSink writes events through a zerolog logger.
type LogSink = audit.LogSink

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}
