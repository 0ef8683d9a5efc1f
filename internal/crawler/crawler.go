// Package crawler wires components A-N into the running system, resolving
// the Crawler/Distributed cyclic reference of original_source's design by
// dependency injection: the Crawler is constructed first with a Router
// capability it will consume, the shard/peer layer is constructed second
// with a reference back to the Crawler's own frontier-insert method, and
// the two references are tied together before Run starts.
package crawler

import (
	"bufio"
	"context"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connoryin/crawler/internal/background"
	"github.com/connoryin/crawler/internal/checkpoint"
	"github.com/connoryin/crawler/internal/config"
	"github.com/connoryin/crawler/internal/frontier"
	"github.com/connoryin/crawler/internal/logging"
	"github.com/connoryin/crawler/internal/peer"
	"github.com/connoryin/crawler/internal/robots"
	"github.com/connoryin/crawler/internal/scheduled"
	"github.com/connoryin/crawler/internal/scheduler"
	"github.com/connoryin/crawler/internal/shard"
	"github.com/connoryin/crawler/internal/urlmodel"
	"github.com/connoryin/crawler/internal/worker"
)

// Crawler is the top-level composition root.
type Crawler struct {
	cfg config.Crawler
	log *logging.Sink

	frontier  *frontier.Frontier
	bloomSet  *scheduled.BloomSet
	scheduled scheduled.Set
	sched     *scheduler.Scheduler
	robots    *robots.Catalog
	router    *shard.Router
	pool      *worker.Pool
	queues    []*peer.Queue
	counters  *background.Counters

	running atomicBool
}

// atomicBool wraps an int32 running flag: a single process-wide boolean
// kept alongside Run's context.CancelFunc for peer handler goroutines that
// only poll a flag rather than select on ctx.Done(). The flag and the
// cancel func are set together on shutdown so both styles of subscriber
// see it.
type atomicBool struct{ v int32 }

func (a *atomicBool) set(b bool) {
	n := int32(0)
	if b {
		n = 1
	}
	atomic.StoreInt32(&a.v, n)
}
func (a *atomicBool) get() bool { return atomic.LoadInt32(&a.v) == 1 }

// New builds a Crawler from cfg. It loads the peer list from
// cfg.HostnamePath (one host per line, this node's own entry included in
// serverID order).
func New(cfg config.Crawler, log *logging.Sink) (*Crawler, error) {
	peers, err := loadPeerList(cfg.HostnamePath)
	if err != nil {
		return nil, err
	}

	f := frontier.New()

	var schedSet scheduled.Set
	var bloomSet *scheduled.BloomSet
	if cfg.ScheduledSetBackend == "redis" {
		rs, err := scheduled.NewRedisSet(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		schedSet = rs
	} else {
		bloomSet = scheduled.NewBloomSet(cfg.ExpectedNumUrls)
		schedSet = bloomSet
	}

	sched := scheduler.New(f, schedSet)
	cat := robots.New()
	router := shard.New(peers, cfg.ServerID)

	c := &Crawler{
		cfg:       cfg,
		log:       log,
		frontier:  f,
		bloomSet:  bloomSet,
		scheduled: schedSet,
		sched:     sched,
		robots:    cat,
		router:    router,
		counters:  &background.Counters{},
	}
	c.running.set(true)

	c.queues = make([]*peer.Queue, len(peers))
	for i, host := range peers {
		if i == cfg.ServerID {
			continue
		}
		c.queues[i] = peer.NewQueue(host, log)
	}

	c.pool = worker.New(cfg.ServerID, sched, cat, c, log, cfg.DataDir)
	c.pool.OnCrawled = c.counters.IncCrawled
	return c, nil
}

// Route implements worker.Router: local URLs go into the shared frontier
// after a scheduled-set check (this is the composed check
// internal/frontier deliberately omits, see frontier.go); non-local URLs
// are handed to the owning peer's send queue.
func (c *Crawler) Route(u urlmodel.URL) {
	if c.router.IsLocal(u) {
		c.InsertFrontier(u)
		return
	}
	owner := c.router.Owner(u)
	if q := c.queues[owner]; q != nil {
		q.Enqueue(u)
	}
}

// InsertFrontier is the capability handed to the peer accept loop
// (peer.Inserter) and to Route above: insert u into the local frontier
// unless the scheduled-set already claims it, so insertion never
// duplicates a URL already known to the scheduled-set.
func (c *Crawler) InsertFrontier(u urlmodel.URL) {
	if c.scheduled.Contains(u) {
		return
	}
	c.frontier.Insert(u)
}

// LoadSeeds reads newline-delimited URLs from cfg.SeedFile and routes
// each one.
func (c *Crawler) LoadSeeds() error {
	file, err := os.Open(c.cfg.SeedFile)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		u, err := urlmodel.Parse(line)
		if err != nil || !u.Absolute() {
			continue
		}
		c.Route(u)
	}
	return scanner.Err()
}

// LoadCheckpoint loads a prior checkpoint file, priming the frontier and
// scheduled-set. Only supported with the Bloom backend, matching §4.9's
// Bloom-byte-stream format.
func (c *Crawler) LoadCheckpoint(path string) error {
	if c.bloomSet == nil {
		return nil
	}
	result, err := checkpoint.Load(path, c.frontier, c.bloomSet)
	if err != nil {
		return err
	}
	c.pool.SetSequence(uint64(result.NumCrawledTotal))
	return nil
}

// Run starts every worker and background goroutine, blocking until ctx is
// cancelled or a component returns a fatal error. It supervises the whole
// tree with an errgroup.Group, turning the single-flag cancellation model
// into a structured, joinable shutdown.
func (c *Crawler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(ctx)

	if err := peer.AcceptLoop(0, c, c.running.get, c.running.set, cancel, c.log); err != nil {
		return err
	}
	for i, q := range c.queues {
		if q == nil {
			continue
		}
		q := q
		stop := make(chan struct{})
		go func() {
			<-gctx.Done()
			close(stop)
		}()
		group.Go(func() error { q.Run(stop); return nil })
		_ = i
	}

	for t := 0; t < c.cfg.NumThreads; t++ {
		t := t
		group.Go(func() error {
			c.pool.Run(gctx, t, func() bool { return gctx.Err() == nil && c.running.get() })
			return nil
		})
	}

	group.Go(func() error {
		return background.GC(gctx, c.frontier, c.sched, frontier.SoftCap)
	})
	group.Go(func() error {
		return background.Stats(gctx, c.frontier, c.counters, c.log, time.Duration(c.cfg.StatsRefreshInterval)*time.Second)
	})
	if c.bloomSet != nil {
		group.Go(func() error {
			return background.Checkpoint(gctx, c.cfg.CheckpointPath, c.frontier, c.bloomSet, c.counters, c.log, time.Duration(c.cfg.CheckpointInterval)*time.Second)
		})
	}

	go func() {
		<-gctx.Done()
		c.running.set(false)
		c.frontier.Close()
	}()

	err := group.Wait()
	c.robots.Close()
	return err
}

func loadPeerList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var hosts []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			hosts = append(hosts, line)
		}
	}
	return hosts, scanner.Err()
}
