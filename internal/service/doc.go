// Package service contains the application services that orchestrate the
// menu scan lifecycle across the domain, store, provider, and event layers.
//
// The central type is ScanService, which owns scan creation, the extraction
// pipeline, image quota accounting, cancellation, deletion, and startup
// recovery. Every counter mutation runs inside a transaction that locks the
// scan row, so concurrent quota operations and worker settlements serialize
// on the database rather than on in-process locks.
package service
