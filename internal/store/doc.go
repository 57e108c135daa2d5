// Package store provides abstractions and interfaces for data persistence,
// independent of the concrete database backend.
package store
