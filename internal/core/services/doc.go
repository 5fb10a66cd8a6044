// Package services implements the driving port interfaces.
//
// The batch runner and the item processors carry the sync semantics:
// bounded concurrency per work kind, a shared outage flag that stops
// dispatch once the repository becomes unreachable, and per-job
// aggregation of item outcomes. The scheduler drives them from the
// configured scan directories and job inboxes.
package services
