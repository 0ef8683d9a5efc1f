package urlmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsoluteURL(t *testing.T) {
	u, err := Parse("https://www.google.com/index.html?query=test")
	require.NoError(t, err)
	assert.True(t, u.Absolute())
	assert.Equal(t, "https", u.Scheme())
	assert.Equal(t, "www.google.com", u.Host())
	assert.Equal(t, 443, u.Port())
	assert.Equal(t, "/index.html", u.Path())
	assert.Equal(t, "query=test", u.Query())
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"https://www.google.com/index.html?query=test",
		"http://example.com:8080/a/b/c",
		"https://example.com/",
	}
	for _, s := range cases {
		u, err := Parse(s)
		require.NoError(t, err)
		reparsed, err := Parse(u.String())
		require.NoError(t, err)
		assert.True(t, u.Equal(reparsed))
	}
}

func TestCombineResolvesRelativeLink(t *testing.T) {
	base := MustParse("https://www.google.com/US/")
	combined, err := Combine(base, "/index.html?query=test")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/index.html?query=test", combined.String())
}

func TestParseRejectsUnsupportedScheme(t *testing.T) {
	_, err := Parse("ftp://example.com/")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestParseRelative(t *testing.T) {
	u, err := Parse("/foo/bar")
	require.NoError(t, err)
	assert.False(t, u.Absolute())
	assert.Panics(t, func() { u.Host() })
}

func TestCombineRequiresAbsoluteBase(t *testing.T) {
	base, _ := Parse("/relative")
	_, err := Combine(base, "/x")
	assert.ErrorIs(t, err, ErrNotAbsolute)
}
