// Package room tracks order-scoped collaborative presence: who else is
// viewing or editing the joined order, and the most recent live update
// for it.
package room
