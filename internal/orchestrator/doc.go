// Package orchestrator coordinates the task workflow: planning breakdowns,
// assembling specialist context, completing subtasks, and synthesizing
// results. Every repository-touching step runs under a per-call timeout
// with bounded retries, and every public operation degrades to a
// structured response instead of an escaping panic.
package orchestrator
