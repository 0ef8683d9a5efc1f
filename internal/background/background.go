// Package background implements the GC, stats, and checkpoint loops,
// ported from original_source/src/crawler/crawler.cpp's
// gcThread/statsThread/checkpointThread. The robots-refresh task lives
// inside internal/robots.Catalog's own goroutine, started by robots.New.
package background

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/connoryin/crawler/internal/checkpoint"
	"github.com/connoryin/crawler/internal/frontier"
	"github.com/connoryin/crawler/internal/humanize"
	"github.com/connoryin/crawler/internal/logging"
	"github.com/connoryin/crawler/internal/scheduled"
	"github.com/connoryin/crawler/internal/scheduler"
)

// gcInterval is how often the GC loop checks the frontier size.
const gcInterval = 30 * time.Second

// Counters tracks the crawl-wide progress the stats task reports.
type Counters struct {
	numCrawledTotal uint64
}

// IncCrawled records one more successfully parsed document.
func (c *Counters) IncCrawled() { atomic.AddUint64(&c.numCrawledTotal, 1) }

// Total returns the crawl-wide document count.
func (c *Counters) Total() uint64 { return atomic.LoadUint64(&c.numCrawledTotal) }

// GC evicts the frontier down to cap/2 whenever it exceeds cap, then
// resets the scheduler's hits cache, every 30s.
func GC(ctx context.Context, f *frontier.Frontier, sched *scheduler.Scheduler, cap int) error {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Lock()
			if f.LenLocked() > cap {
				f.GCLocked(cap / 2)
			}
			f.Unlock()
			sched.ResetHitsCache()
		}
	}
}

// Stats logs speed, total crawled, and frontier size every interval
// seconds.
func Stats(ctx context.Context, f *frontier.Frontier, counters *Counters, log *logging.Sink, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			total := counters.Total()
			speed := total - last
			last = total
			log.Info(map[string]interface{}{
				"speed_per_interval": speed,
				"total_crawled":      total,
				"frontier_size":      f.Len(),
			}, "crawl stats")
		}
	}
}

// Checkpoint invokes the checkpoint engine every interval seconds,
// default 600.
func Checkpoint(ctx context.Context, path string, f *frontier.Frontier, s *scheduled.BloomSet, counters *Counters, log *logging.Sink, interval time.Duration) error {
	if interval <= 0 {
		interval = 600 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := checkpoint.Snapshot(path, f, s, int(counters.Total())); err != nil {
				log.Error(err, "checkpoint snapshot failed")
				continue
			}
			sizeStr := "unknown"
			if info, err := os.Stat(path); err == nil {
				sizeStr = humanize.FileSize(int(info.Size()))
			}
			log.Info(map[string]interface{}{
				"frontier_size":  f.Len(),
				"checkpoint_size": sizeStr,
			}, "checkpoint written")
		}
	}
}
