package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestOwnerIsDeterministicAndCoversAllPeers(t *testing.T) {
	peers := []string{"node0.example.com", "node1.example.com", "node2.example.com"}
	r := New(peers, 1)

	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		u := urlmodel.MustParse("http://example.com/page/" + string(rune('a'+i%26)) + string(rune('0'+i%10)))
		owner := r.Owner(u)
		assert.GreaterOrEqual(t, owner, 0)
		assert.Less(t, owner, len(peers))
		// same URL always routes to the same owner
		assert.Equal(t, owner, r.Owner(u))
		seen[owner] = true
	}
	assert.Greater(t, len(seen), 1, "expected URLs to spread across more than one peer")
}

func TestIsLocalMatchesOwner(t *testing.T) {
	peers := []string{"node0", "node1", "node2"}
	r := New(peers, 1)
	u := urlmodel.MustParse("http://example.com/x")
	assert.Equal(t, r.Owner(u) == 1, r.IsLocal(u))
}
