// Package streammux multiplexes several byte streams into one stream.
//
// # Overview
//
// A Multiplexer owns one physical output (a file, a pipe, a socket) and hands out Channels,
// one per logical stream. Each Channel buffers its bytes line by line and, when a line is
// complete or Flush is called, writes a tagged record to the physical output. A reader on
// the other end can split the combined stream again with a single loop: no threads, no
// select.
//
// Goals:
//
//  1. Differentiate between streams (For example: stdout, stderr, control)
//  2. Preserve information about trailing newlines
//  3. Stay readable for a human looking at the raw traffic
//
// # Format Specification
//
//	combined     ::= ( control_line payload )*
//	control_line ::= '@' marker ('@')? '\n'
//	payload      ::= <any bytes without '\n'> '\n'
//
// Control lines alternate with payload lines. Both end with a newline and never contain
// one.
//
// # Fields
//
//   - marker: one printable byte naming the stream. '1' is stdout, '2' is stderr and '3' is
//     the control stream. Any other printable byte except '@' may be used as well.
//   - second '@': the payload is a partial line. The writer flushed before the line was
//     terminated, and the newline after the payload was added by the multiplexer. A reader
//     must join it with the following record of the same marker.
//
// # Examples
//
// Example 1: complete line written to stdout
//
//	@1\n
//	hello\n
//
// Example 2: "wor" flushed to stdout without a trailing newline
//
//	@1@\n
//	wor\n
//
// Example 3: flushing an empty Channel
//
// Nothing is written. The physical output is flushed, if it supports flushing.
package streammux
