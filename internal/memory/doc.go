// Package memory configures GOMEMLIMIT from the container limit and holds
// back new batches while the heap is close to it.
//
// Bounding decodes a full bitmap per image, so a burst of large pictures can
// push a small container over its limit. [ConfigureLimit] should run early
// in main, before the image stack allocates:
//
//	memory.ConfigureLimit(cfg.MemoryLimit, cfg.MemoryRatio)
//
// A [Monitor] samples the heap every CheckInterval. Above CriticalWaterMark
// it pauses and triggers a GC; below HighWaterMark it resumes. The batch
// runner calls [Monitor.Wait] before it starts each batch.
//
// In Kubernetes the limit usually comes from the Downward API:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.80"
package memory
