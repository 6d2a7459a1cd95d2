// Package jobexec is a distributed job execution service.
//
// Application processes register job definitions; the scheduler ensures
// that, across every process sharing a common store, each job name has at
// most one running instance and at most one queued instance at a time,
// honors mutual-exclusion constraints between jobs, drives local execution
// on worker goroutines, and supervises jobs executed on external worker
// hosts by posting work and polling status.
//
// The core engine lives in three packages:
//
//	import "oss.nandlabs.io/jobexec/store"     // durable, concurrency-safe job records
//	import "oss.nandlabs.io/jobexec/scheduler" // admit/queue/run decisions
//	import "oss.nandlabs.io/jobexec/remote"    // remote-job supervision loop
//
// Supporting packages provide the runnable registry, running-constraint
// sets, timeout/retention housekeeping, the HTTP read/control API, and the
// ambient stack (logging, config, REST client/server, codec, collections).
package jobexec
