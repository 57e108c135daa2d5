// Package events decouples the scan service from the background generation
// workers. The service emits GenerationEvent values describing work to do;
// the task layer registers a handler that turns them into queued tasks.
package events
