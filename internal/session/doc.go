// Package session assembles the realtime subsystems for one
// authenticated user context.
package session
