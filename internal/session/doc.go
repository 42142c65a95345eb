// Package session implements the session lifecycle core.
//
// Store is the concurrent registry of in-progress sessions, Manager
// orchestrates admission, disconnect/reconnect bookkeeping, and restoration,
// and Reconciler drives the periodic sweep and snapshot save. Depends on
// domain interfaces, not concrete collaborators.
package session
