package scheduler

import "time"

// Options configures a Scheduler instance.
type Options struct {
	// Host identifies this process for UpdateHostThread / shutdownJobs
	// ownership checks. Defaults to the OS hostname.
	Host string
	// MaxLocalWorkers bounds the number of concurrently dispatched local
	// worker goroutines (spec.md §9 "bounded worker pool" design note). A
	// value <= 0 is treated as effectively unbounded.
	MaxLocalWorkers int
	// QueueDrainInterval is how often executeQueuedJobs runs automatically
	// once Start is called.
	QueueDrainInterval time.Duration
}

// DefaultMaxLocalWorkers is used when Options.MaxLocalWorkers is unset.
// It is deliberately large rather than infinite so the pool.Pool backing
// worker dispatch always has a concrete, enforceable ceiling.
const DefaultMaxLocalWorkers = 4096

// DefaultQueueDrainInterval is used when Options.QueueDrainInterval is unset.
const DefaultQueueDrainInterval = 2 * time.Second

func (o Options) withDefaults() Options {
	if o.MaxLocalWorkers <= 0 {
		o.MaxLocalWorkers = DefaultMaxLocalWorkers
	}
	if o.QueueDrainInterval <= 0 {
		o.QueueDrainInterval = DefaultQueueDrainInterval
	}
	return o
}
