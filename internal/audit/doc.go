// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink] is the interface for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the audit record: timestamp, type, tenant, user, session, wallet, IP, code.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit. That belongs to the Engine and the flow functions.
//
// Events never carry passwords, signatures, bearer tokens or one-time tokens.
package audit
