// Package dnswire implements a non-blocking, transport-agnostic codec for
// streams of DNS telemetry records ("taps") carried inside a length-prefixed
// frame-stream protocol.
//
// Semantics and design:
//   - Wire format: frames are a 32-bit big-endian length followed by that
//     many payload bytes. A zero length marks a control frame (READY,
//     ACCEPT, START, STOP, FINISH), each of which may carry typed control
//     fields (currently only CONTENT_TYPE).
//   - Non-blocking first: every public operation advances the underlying
//     state machine by at most one step and returns; NEED_MORE on ingress
//     and AGAIN on egress are the cooperative yield points. Nothing here
//     blocks except the single syscall inside the descriptor helpers.
//   - Buffer ownership: Reader and Writer each own a private, resizable
//     byte buffer (initial size, growth increment, maximum size). Decoded
//     record payloads are slices borrowed from that buffer and are only
//     valid until the next call that advances the same Reader.
//
// What this package does not do: interpret the bytes of a data frame (see
// the dnstap subpackage for that), set up the transport (dial/listen/accept
// are the caller's job), or retry a broken stream — a lost byte is a fatal,
// terminal error for the session.
package dnswire
