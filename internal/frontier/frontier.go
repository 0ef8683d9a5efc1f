// Package frontier implements the shared, bounded URL frontier, ported
// from original_source's HashSet<Url> _frontier plus its
// condition-variable-driven dequeue wait.
package frontier

import (
	"sync"

	"github.com/connoryin/crawler/internal/urlmodel"
)

// SoftCap is the frontier's soft size limit; the GC background task
// evicts down to SoftCap/2 when this is exceeded.
const SoftCap = 1_000_000

// Frontier is a set of URLs pending crawl, keyed by canonical string.
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  map[string]urlmodel.URL
	closed bool
}

// New returns an empty Frontier.
func New() *Frontier {
	f := &Frontier{items: make(map[string]urlmodel.URL)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Close wakes every WaitForSize waiter so it can observe shutdown; workers
// re-check the running flag on each loop iteration, including after each
// condvar wake.
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Insert adds url unconditionally and wakes any waiter. Callers are
// expected to have already checked the scheduled-set — a URL should only
// land in the frontier if it isn't already known there — but this package
// does not import scheduled to avoid a cyclic dependency, so that check is
// the caller's responsibility (see internal/crawler for the composed
// check).
func (f *Frontier) Insert(url urlmodel.URL) {
	f.mu.Lock()
	f.items[url.String()] = url
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Len returns the current frontier size.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// WaitForSize blocks until the frontier holds at least n items or Close is
// called, returning false in the latter case. Matches
// Crawler::getNextUrlBatch's `_cv.wait(frontierLock, ...)` predicate wait.
func (f *Frontier) WaitForSize(n int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.items) < n && !f.closed {
		f.cond.Wait()
	}
	return !f.closed
}

// Lock/Unlock expose the frontier's mutex to the scheduler, which takes it
// first and then its hits-cache lock, holding both across one critical
// section while it samples the frontier.
func (f *Frontier) Lock()   { f.mu.Lock() }
func (f *Frontier) Unlock() { f.mu.Unlock() }

// Items returns a snapshot slice of the current frontier contents. Callers
// holding the lock (via Lock/Unlock) use SnapshotLocked instead.
func (f *Frontier) Items() []urlmodel.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemsLocked()
}

func (f *Frontier) itemsLocked() []urlmodel.URL {
	out := make([]urlmodel.URL, 0, len(f.items))
	for _, u := range f.items {
		out = append(out, u)
	}
	return out
}

// DeleteLocked removes url from the frontier. Caller must hold Lock.
func (f *Frontier) DeleteLocked(url urlmodel.URL) {
	delete(f.items, url.String())
}

// InsertLocked adds url without acquiring the lock or broadcasting. Caller
// must hold Lock and is responsible for broadcasting if needed.
func (f *Frontier) InsertLocked(url urlmodel.URL) {
	f.items[url.String()] = url
}

// LenLocked returns the size without acquiring the lock.
func (f *Frontier) LenLocked() int { return len(f.items) }

// SnapshotLocked returns every URL currently in the frontier. Caller must
// hold Lock.
func (f *Frontier) SnapshotLocked() []urlmodel.URL { return f.itemsLocked() }

// Broadcast wakes all size waiters. Caller must hold Lock.
func (f *Frontier) Broadcast() { f.cond.Broadcast() }

// GCLocked evicts arbitrary entries until the frontier is at most target
// items. Caller must hold Lock.
func (f *Frontier) GCLocked(target int) {
	for k := range f.items {
		if len(f.items) <= target {
			break
		}
		delete(f.items, k)
	}
}
