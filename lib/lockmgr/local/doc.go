// Package local implements lockmgr.ILockManager in memory for tasks running
// in the same process.
//
// Every name has its own resource with a list of holders and a FIFO queue of
// pending requests. Resources live in an xsync.MapOf and are guarded by their
// own mutex, so requests for different names do not contend. A resource is
// removed as soon as it has neither holders nor pending requests.
//
// Grant Rules:
//
//   - An exclusive request is granted when the name has no holders.
//   - A shared request is granted when the name has no exclusive holder.
//   - Only the head of the queue is ever granted; a shared request queued
//     behind an exclusive one waits even if the current holders are shared.
//   - IfAvailable requests are granted only if they would be granted right
//     away without a queue; otherwise the grant callback receives nil.
//   - Steal requests drop all holders of the name (their Request calls
//     return an error with lockmgr.RetCStolen) and are granted at once.
//
// Metrics:
//
//	The manager counts grants, declines, aborts, steals and releases and times
//	the wait for a grant in a go-metrics registry (Options.Registry).
package local
