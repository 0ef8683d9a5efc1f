// Package scheduler implements batch dequeue with per-host rate limiting
// and score-based ordering, ported from Crawler::getNextUrlBatch and
// Crawler::getUrlScore.
package scheduler

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/connoryin/crawler/internal/frontier"
	"github.com/connoryin/crawler/internal/scheduled"
	"github.com/connoryin/crawler/internal/urlmodel"
)

// HostHitRateLimit bounds per-host dispatch within one hits-cache window.
const HostHitRateLimit = 2048

// Scheduler dequeues batches from a Frontier, consulting a Set to skip
// already-scheduled URLs and a per-host hits cache to cap concurrency.
type Scheduler struct {
	frontier *frontier.Frontier
	sched    scheduled.Set

	mu        sync.Mutex
	hitsCache map[string]int

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New builds a Scheduler over frontier and sched.
func New(f *frontier.Frontier, s scheduled.Set) *Scheduler {
	return &Scheduler{
		frontier:  f,
		sched:     s,
		hitsCache: make(map[string]int),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// ResetHitsCache clears the per-host window counters, called by the GC
// background task every 30s.
func (s *Scheduler) ResetHitsCache() {
	s.mu.Lock()
	s.hitsCache = make(map[string]int)
	s.mu.Unlock()
}

// GetNextUrlBatch waits for the frontier to reach batchSize*sampleFactor
// items, samples up to that many while holding the frontier lock and then
// the hits-cache lock (the scheduled-set takes its own lock inside each
// Contains call), scores the sample, keeps the top batchSize,
// reinserts the rest, and marks the kept batch as scheduled. Returns nil
// if the frontier was closed while waiting.
func (s *Scheduler) GetNextUrlBatch(batchSize, sampleFactor int) []urlmodel.URL {
	sampleSize := batchSize * sampleFactor

	if !s.frontier.WaitForSize(sampleSize) {
		return nil
	}

	s.frontier.Lock()
	s.mu.Lock()
	var sample []urlmodel.URL
	for _, u := range s.frontier.SnapshotLocked() {
		if len(sample) >= sampleSize {
			break
		}
		if s.sched.Contains(u) {
			s.frontier.DeleteLocked(u)
			continue
		}
		host := u.Host()
		if s.hitsCache[host] < HostHitRateLimit {
			s.hitsCache[host]++
			sample = append(sample, u)
			s.frontier.DeleteLocked(u)
		}
	}
	s.mu.Unlock()
	s.frontier.Unlock()

	sort.SliceStable(sample, func(i, j int) bool {
		return Score(sample[i]) > Score(sample[j])
	})

	var batch []urlmodel.URL
	if len(sample) > batchSize {
		batch, sample = sample[:batchSize], sample[batchSize:]
	} else {
		batch, sample = sample, nil
	}

	if len(sample) > 0 {
		s.frontier.Lock()
		for _, u := range sample {
			s.frontier.InsertLocked(u)
		}
		s.frontier.Broadcast()
		s.frontier.Unlock()
	}

	for _, u := range batch {
		s.sched.Insert(u)
	}

	return batch
}

// HostLimiter returns (creating if needed) a courtesy token-bucket
// limiter for host, an additional politeness layer alongside the exact
// hits-cache counter. Workers may call Wait on it before dispatching a
// request to the same host in quick succession; it does not replace the
// hard per-window cap enforced above.
func (s *Scheduler) HostLimiter(host string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(10), 5) // 10 req/s, burst 5, per host
		s.limiters[host] = l
	}
	return l
}

// Score is Crawler::getUrlScore ported directly. The domain check matches
// the three preferred suffixes against the host and against its ICANN
// public suffix from golang.org/x/net/publicsuffix; only hosts ending in
// .edu, .gov or .org earn the point.
func Score(u urlmodel.URL) int {
	score := 0

	if u.Scheme() == "https" {
		score++
	}

	host := u.Host()
	if len(host) <= 20 {
		score++
	}

	if hasPreferredDomain(host) {
		score++
	}

	path := u.Path()
	if len(path) <= 10 {
		score++
	}

	nonAlpha := 0
	for _, c := range path {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			nonAlpha++
		}
	}
	if nonAlpha > 10 {
		score--
	}

	query := u.Query()
	if query == "" {
		score++
	}
	if len(query) > 20 {
		score--
	}
	if len(query) > 40 {
		score--
	}

	return score
}

var preferredDomains = []string{".edu", ".gov", ".org"}

func hasPreferredDomain(host string) bool {
	for _, d := range preferredDomains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	if suffix, icann := publicsuffix.PublicSuffix(host); icann {
		for _, d := range preferredDomains {
			if strings.HasSuffix("."+suffix, d) {
				return true
			}
		}
	}
	return false
}
