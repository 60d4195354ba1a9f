// internal/batch/concurrency.go
package batch

import (
	"runtime"
)

const (
	maxAutoWorkers = 10
	tabMemoryMB    = 50
)

// autoWorkers sizes the pool when no worker count is configured. Each worker
// holds a browser tab, so free heap bounds it before CPU count does.
func autoWorkers() int {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	n := min(runtime.NumCPU()*2, maxAutoWorkers)
	if byMemory := int((m.Sys - m.Alloc) >> 20 / tabMemoryMB); byMemory > 0 {
		n = min(n, byMemory)
	}
	return max(n, 1)
}
