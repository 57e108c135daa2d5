// Package task implements the background workers that generate dish
// images. A buffered TaskQueue feeds a fixed worker pool; each task
// claims its dish row, calls the image provider, stores the result, and
// settles the attempt against the scan's counters.
package task
