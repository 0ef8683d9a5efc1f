package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/connoryin/crawler/internal/frontier"
	"github.com/connoryin/crawler/internal/scheduled"
	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestScoreRewardsShortHttpsLowQuery(t *testing.T) {
	plain := Score(urlmodel.MustParse("http://averylonghostnamegoeshere.example.com/a/b/c/d/e?x=1&y=2&z=3&w=4"))
	good := Score(urlmodel.MustParse("https://example.edu/"))
	assert.Greater(t, good, plain)
}

// TestHostHitRateCapEnforced checks that dispatch of URLs for a single
// host is capped at HostHitRateLimit per hits-cache window (reset only by
// the GC background task).
func TestHostHitRateCapEnforced(t *testing.T) {
	f := frontier.New()
	sched := scheduled.NewBloomSet(10000)
	s := New(f, sched)

	const host = "capped.example.com"
	for i := 0; i < HostHitRateLimit+500; i++ {
		f.Insert(urlmodel.MustParse(fmt.Sprintf("http://%s/%d", host, i)))
	}

	const batchSize = 50
	dispatched := 0
	stall := 0
	for f.Len() >= batchSize && stall < 3 {
		batch := s.GetNextUrlBatch(batchSize, 1)
		if len(batch) == 0 {
			stall++
			continue
		}
		stall = 0
		dispatched += len(batch)
	}

	assert.LessOrEqual(t, dispatched, HostHitRateLimit)
}

func TestHostLimiterReturnsSameLimiterForSameHost(t *testing.T) {
	s := New(frontier.New(), scheduled.NewBloomSet(10))
	a := s.HostLimiter("limiter.example.com")
	b := s.HostLimiter("limiter.example.com")
	assert.Same(t, a, b)

	c := s.HostLimiter("other.example.com")
	assert.NotSame(t, a, c)
}

func TestResetHitsCacheReopensCapacity(t *testing.T) {
	f := frontier.New()
	sched := scheduled.NewBloomSet(10000)
	s := New(f, sched)

	host := "reset.example.com"
	for i := 0; i < HostHitRateLimit; i++ {
		f.Insert(urlmodel.MustParse(fmt.Sprintf("http://%s/%d", host, i)))
	}

	// exhaust the host's window so the second batch depends on the reset
	first := s.GetNextUrlBatch(HostHitRateLimit, 1)
	assert.Len(t, first, HostHitRateLimit)

	for i := 0; i < 10; i++ {
		f.Insert(urlmodel.MustParse(fmt.Sprintf("http://%s/%d", host, i+HostHitRateLimit)))
	}
	s.ResetHitsCache()

	second := s.GetNextUrlBatch(10, 1)
	assert.Len(t, second, 10)
}
