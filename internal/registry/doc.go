// Package registry fans decoded inbound envelopes out to topic
// listeners. Dispatch iterates a snapshot of the listener set, so
// callbacks may subscribe or unsubscribe freely, and a panicking
// callback never stops the rest of the pass.
package registry
