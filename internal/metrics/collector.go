package metrics

import (
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"media-picker/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	Stats() (Stats, error)
}

// Stats holds the provider store counts published as gauges.
type Stats struct {
	Collections map[string]int
	Grants      int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectRuntime()
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.Stats()
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	for coll, n := range stats.Collections {
		ProviderMediaTotal.WithLabelValues(coll).Set(float64(n))
	}
	ProviderGrantsTotal.Set(float64(stats.Grants))

	logging.Debug("Metrics collected: collections=%v, grants=%d", stats.Collections, stats.Grants)
}

func (c *Collector) collectRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))
	GoMemLimit.Set(float64(debug.SetMemoryLimit(-1)))
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		info, err := os.Stat(c.dbPath + suffix)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
