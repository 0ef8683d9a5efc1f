// Package robots implements the robots.txt catalog: lazy per-host fetch,
// an aging hit-count cache, and the recursive wildcard prefix matcher,
// ported from
// original_source/src/crawler/robots_catalog.cpp verbatim. temoto/robotstxt
// was considered and dropped (see DESIGN.md) because it does not expose
// this exact matcher or aging-cache contract.
package robots

import (
	"bufio"
	"strings"
	"sync"
	"time"

	"github.com/connoryin/crawler/internal/httpclient"
	"github.com/connoryin/crawler/internal/urlmodel"
)

type ruleType int

const (
	ruleAllow ruleType = iota
	ruleDisallow
)

type rule struct {
	kind    ruleType
	pattern string
}

type cacheEntry struct {
	rules   []rule
	numHits int
}

const (
	cacheHitRateThreshold = 1
	cacheRefreshInterval  = 5 * time.Second
)

// Catalog fetches, caches, and matches robots.txt rules. It runs its own
// background refresh loop, started by New and stopped by Close, mirroring
// the original's dedicated _cacheThread.
type Catalog struct {
	client *httpclient.Client

	mu    sync.Mutex
	cache map[string]*cacheEntry

	stop chan struct{}
	done chan struct{}
}

// New builds a Catalog with its own HTTP client, configured with
// Accept: text/plain and a 5s timeout distinct from the crawl worker's
// client, per original_source's RobotsCatalog constructor.
func New() *Catalog {
	client := httpclient.New()
	client.Headers.Accept = "text/plain"
	client.Timeout = 5 * time.Second

	c := &Catalog{
		client: client,
		cache:  make(map[string]*cacheEntry),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.refreshLoop()
	return c
}

// Close stops the background refresh loop.
func (c *Catalog) Close() {
	close(c.stop)
	<-c.done
}

// IsAllowed reports whether requestURL may be crawled under its host's
// robots.txt. HTTP failures while fetching robots.txt degrade to "no
// rules" (permissive).
func (c *Catalog) IsAllowed(requestURL urlmodel.URL) bool {
	c.mu.Lock()
	entry, ok := c.cache[requestURL.Host()]
	if !ok {
		c.mu.Unlock()

		robotsText := c.fetchRobotsText(requestURL)
		rules := parseRobotsFile(robotsText)

		c.mu.Lock()
		entry, ok = c.cache[requestURL.Host()]
		if !ok {
			entry = &cacheEntry{rules: rules}
			c.cache[requestURL.Host()] = entry
		}
	}
	entry.numHits++
	rules := entry.rules
	c.mu.Unlock()

	isDisallowed := false
	for _, r := range rules {
		if startsWithPattern(requestURL.Path(), r.pattern) {
			if r.kind == ruleAllow {
				return true
			}
			isDisallowed = true
		}
	}
	return !isDisallowed
}

func (c *Catalog) fetchRobotsText(requestURL urlmodel.URL) string {
	robotsURL, err := urlmodel.Combine(requestURL, "/robots.txt")
	if err != nil {
		return ""
	}
	resp, _, err := c.client.Get(robotsURL)
	if err != nil {
		return ""
	}
	return string(resp.Body)
}

// parseRobotsFile ports parseRobotsFile from robots_catalog.cpp exactly,
// including its user-agent handling: currentUserAgent is reassigned by
// every user-agent line and never reset at blank lines or group
// boundaries, and allow/disallow lines are kept only while the most recent
// user-agent line was "*". In a group that lists several user agents, the
// last one listed decides whether the group's rules are kept.
func parseRobotsFile(robotsText string) []rule {
	var rules []rule
	currentUserAgent := ""

	scanner := bufio.NewScanner(strings.NewReader(robotsText))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pos := strings.IndexByte(line, ':')
		if pos == -1 {
			continue
		}
		name := strings.ToLower(line[:pos])
		if pos+2 > len(line) {
			continue
		}
		value := line[pos+2:]

		if name == "user-agent" {
			currentUserAgent = value
		}
		if currentUserAgent != "*" {
			continue
		}

		switch name {
		case "allow":
			rules = append(rules, rule{kind: ruleAllow, pattern: value})
		case "disallow":
			rules = append(rules, rule{kind: ruleDisallow, pattern: value})
		}
	}
	return rules
}

// startsWithPattern is the recursive backtracking wildcard prefix
// matcher, ported directly from RobotsCatalog::startsWithPattern.
func startsWithPattern(path, pattern string) bool {
	if pattern == "" {
		return true
	}
	if path == "" {
		return pattern == "*"
	}
	if path[0] == pattern[0] {
		return startsWithPattern(path[1:], pattern[1:])
	}
	if pattern[0] == '*' {
		return startsWithPattern(path, pattern[1:]) || startsWithPattern(path[1:], pattern)
	}
	return false
}

func (c *Catalog) refreshLoop() {
	defer close(c.done)
	ticker := time.NewTicker(cacheRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.refreshCache()
		}
	}
}

// refreshCache decays every entry's hit counter and evicts zero-hit
// entries, per RobotsCatalog::refreshCache.
func (c *Catalog) refreshCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	decay := cacheHitRateThreshold * int(cacheRefreshInterval/time.Second)
	for host, entry := range c.cache {
		entry.numHits -= decay
		if entry.numHits < 0 {
			entry.numHits = 0
		}
		if entry.numHits == 0 {
			delete(c.cache, host)
		}
	}
}
