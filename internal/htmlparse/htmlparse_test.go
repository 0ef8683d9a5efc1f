package htmlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connoryin/crawler/internal/urlmodel"
)

// TestAnchorTextAndRelativeLink checks that the parser only discovers the
// raw link; base resolution is the caller's job (see internal/worker),
// verified separately below.
func TestAnchorTextAndRelativeLink(t *testing.T) {
	p := New(nil)
	info, err := p.Parse(`<a href="/x">Hello World</a>`)
	require.NoError(t, err)

	require.Len(t, info.Links, 1)
	assert.False(t, info.Links[0].URL.Absolute())
	assert.Equal(t, []string{"hello", "world"}, info.Links[0].AnchorWords)
	assert.Contains(t, info.Words, "hello")
	assert.Contains(t, info.Words, "world")

	base := urlmodel.MustParse("http://h/")
	resolved, err := urlmodel.Combine(base, info.Links[0].URL.String())
	require.NoError(t, err)
	assert.Equal(t, "http://h/x", resolved.String())
}

func TestWordsExcludeScriptStyleSvg(t *testing.T) {
	p := New(nil)
	info, err := p.Parse(`before <script>var x = 1;</script> middle <style>.a{}</style> after <svg><text>drawn</text></svg> end`)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "middle", "after", "end"}, info.Words)
}

func TestTitleWordsCollected(t *testing.T) {
	p := New(nil)
	info, err := p.Parse(`<title>My Page Title</title><p>Body</p>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"my", "page", "title"}, info.TitleWords)
	assert.Contains(t, info.Words, "body")
}

func TestBaseTagRecorded(t *testing.T) {
	p := New(nil)
	info, err := p.Parse(`<base href="http://example.com/root/"><a href="x">link</a>`)
	require.NoError(t, err)
	require.NotNil(t, info.Base)
	assert.Equal(t, "http://example.com/root/", info.Base.String())
}

func TestUnclosedTitleIsMalformed(t *testing.T) {
	p := New(nil)
	_, err := p.Parse(`<title>oops`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLinkFilterRejection(t *testing.T) {
	p := New(func(u urlmodel.URL, tag TagInfo) bool { return false })
	info, err := p.Parse(`<a href="/x">nope</a>`)
	require.NoError(t, err)
	assert.Empty(t, info.Links)
}

func TestEmbedLinkHasNoAnchorTracking(t *testing.T) {
	p := New(nil)
	info, err := p.Parse(`<a href="/x">before<embed src="/y">after</a>`)
	require.NoError(t, err)
	require.Len(t, info.Links, 2)
	assert.Equal(t, []string{"before", "after"}, info.Links[0].AnchorWords)
	assert.Nil(t, info.Links[1].AnchorWords)
}
