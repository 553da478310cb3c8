// Package replay drives an analysis step over recorded events and a set of
// systematic variations.
//
// A Loop moves through four states, once:
//
//	Uninitialized -> Bounded -> Running -> Completed
//
// Before Bounded the variation set is resolved (nominal only unless
// systematics are enabled) and the run bound is computed from the source's
// event count and the requested maximum.
//
// While Running, for every event index in ascending order:
//
// 1. The event at the index is loaded into a single reused view.
//
// 2. For every variation, in set order, the variation is applied (when the
// step implements Applier) and the step processes the view.
//
// 3. The transient store is cleared.
//
// Progress is observed every bound/10 events. The clock starts when the loop
// enters Running and stops when it leaves it, so variation discovery, source
// setup and any profiling region toggles are outside the measured interval.
//
// Every failure is fatal: the run stops at the first error and no later
// (event, variation) pair is processed.
package replay
