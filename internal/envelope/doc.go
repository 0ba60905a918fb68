// Package envelope defines the wire message format shared with the
// freight backend: a typed JSON envelope carrying an opaque payload, a
// sender-stamped timestamp, and an optional order scope.
package envelope
