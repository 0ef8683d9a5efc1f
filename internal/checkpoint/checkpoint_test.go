package checkpoint

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connoryin/crawler/internal/frontier"
	"github.com/connoryin/crawler/internal/scheduled"
	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestSnapshotAndLoadRoundTrip(t *testing.T) {
	srcFrontier := frontier.New()
	srcSet := scheduled.NewBloomSet(1000)

	var urls []urlmodel.URL
	for i := 0; i < 10; i++ {
		u := urlmodel.MustParse(fmt.Sprintf("http://example.com/page/%d", i))
		urls = append(urls, u)
		srcFrontier.Insert(u)
		srcSet.Insert(u)
	}

	path := filepath.Join(t.TempDir(), "checkpoint")
	require.NoError(t, Snapshot(path, srcFrontier, srcSet, 42))

	dstFrontier := frontier.New()
	dstSet := scheduled.NewBloomSet(1000)
	result, err := Load(path, dstFrontier, dstSet)
	require.NoError(t, err)

	assert.Equal(t, 42, result.NumCrawledTotal)
	assert.Equal(t, len(urls), dstFrontier.Len())
	for _, u := range urls {
		assert.True(t, dstSet.Contains(u))
	}

	srcItems := make(map[string]bool)
	for _, u := range srcFrontier.Items() {
		srcItems[u.String()] = true
	}
	for _, u := range dstFrontier.Items() {
		assert.True(t, srcItems[u.String()])
	}
}

func TestLoadFailsHardOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist"), frontier.New(), scheduled.NewBloomSet(10))
	assert.Error(t, err)
}

func TestLoadSkipsMalformedURLLines(t *testing.T) {
	s := scheduled.NewBloomSet(10)

	path := filepath.Join(t.TempDir(), "checkpoint")
	var body []byte
	body = append(body, []byte("1 2\n")...)
	body = append(body, []byte("http://example.com/ok\n")...)
	body = append(body, []byte("not a valid absolute url\n")...) // malformed, must be skipped
	body = append(body, []byte("\n")...)

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	body = append(body, buf.Bytes()...)

	require.NoError(t, os.WriteFile(path, body, 0o644))

	dst := frontier.New()
	dstSet := scheduled.NewBloomSet(10)
	result, err := Load(path, dst, dstSet)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FrontierSize)
	assert.Equal(t, 1, dst.Len())
}
