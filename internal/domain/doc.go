// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (zone.go, session.go, ports.go, errors.go) hold the
// shared types and cross-cutting interfaces. No implementation code - just
// contracts. Keeps interfaces on the consumer side and prevents circular imports.
package domain
