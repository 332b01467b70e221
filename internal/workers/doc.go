/*
Package workers sizes worker pools in containerized environments and bounds
how many tasks run at once.

# Worker counts

runtime.NumCPU returns the host's CPU count even when a cgroup limit applies.
Since Go 1.19 GOMAXPROCS follows the container CPU limit, so the helpers
here derive counts from it:

	workers.ForCPU(8)   // image decoding and encoding
	workers.ForIO(16)   // file walks, provider queries, downloads
	workers.ForMixed(12)

Every helper respects the PICKER_WORKERS environment variable, capped by
the limit passed in.

# Limiter

A Limiter is a counting semaphore. The batch runner holds one slot per
running batch:

	lim := workers.NewLimiter(workers.ForIO(8))
	if err := lim.Acquire(ctx); err != nil {
		return err
	}
	defer lim.Release()
*/
package workers
