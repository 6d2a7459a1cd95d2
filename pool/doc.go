// Package pool provides a generic object pool implementation.
//
// It supports configurable min/max capacity and automatic object lifecycle
// management through a user-supplied ObjectHandler. An idle timeout can be
// configured and is reported back, but idle objects are never evicted.
package pool
