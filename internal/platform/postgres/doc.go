// Package postgres provides PostgreSQL implementations of the store
// interfaces. Every multi-step read-then-write the pipeline performs
// (quota checks, counter increments, completion transitions) runs through
// these stores inside a single transaction with row-level locks, closing
// the lost-update races a naive read-then-write would leave open.
package postgres
