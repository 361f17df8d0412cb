// Package reconcile turns raw label-map artifacts into named, colored,
// terminology-tagged segments inside destination containers.
//
// The Reconciler consumes a task's label space, an optional target subset,
// and the artifact the segmentation model produced, then drives a
// Container through import, pruning, and terminology application. For the
// composite "all" task it repeats this per subtask, accumulating results
// across containers in fixed order.
//
// Per-task problems (no artifact, nothing left after the subset filter)
// are status variants on the Result, not errors; only structural and
// infrastructure failures surface as errors.
package reconcile
