package robots

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestStartsWithPatternWildcardMatching(t *testing.T) {
	assert.True(t, startsWithPattern("/anything", ""))
	assert.True(t, startsWithPattern("", ""))
	assert.False(t, startsWithPattern("", "abc"))
	assert.True(t, startsWithPattern("", "*"))
	assert.True(t, startsWithPattern("/wishlist/universal", "/wishlist/universal"))
	assert.True(t, startsWithPattern("/wishlist/private", "/wishlist/*"))
	assert.False(t, startsWithPattern("/other", "/wishlist/*"))
}

func TestParseRobotsFileCollectsStarGroupRules(t *testing.T) {
	text := "User-agent: *\nDisallow: /wishlist/*\nAllow: /wishlist/universal\n"
	rules := parseRobotsFile(text)
	require.Len(t, rules, 2)
	assert.Equal(t, ruleDisallow, rules[0].kind)
	assert.Equal(t, "/wishlist/*", rules[0].pattern)
	assert.Equal(t, ruleAllow, rules[1].kind)
	assert.Equal(t, "/wishlist/universal", rules[1].pattern)
}

func TestIsAllowedHonorsDisallowRules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /wishlist/*\nAllow: /wishlist/universal\n")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "http://")

	cat := New()
	defer cat.Close()

	allowed := urlmodel.MustParse(fmt.Sprintf("http://%s/wishlist/universal", host))
	disallowed := urlmodel.MustParse(fmt.Sprintf("http://%s/wishlist/private", host))

	assert.True(t, cat.IsAllowed(allowed))
	assert.False(t, cat.IsAllowed(disallowed))
}

func TestIsAllowedDegradesPermissiveOnFetchFailure(t *testing.T) {
	cat := New()
	defer cat.Close()

	u := urlmodel.MustParse("http://127.0.0.1:1/anything")
	assert.True(t, cat.IsAllowed(u))
}
