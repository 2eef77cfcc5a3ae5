// Package storage defines the persistence interfaces for the persona engine.
//
// Trained policies are stored as opaque snapshot blobs keyed by agent
// registry key; training runs append telemetry events. Implementations
// live in subpackages (sqlite is the default backend).
package storage
