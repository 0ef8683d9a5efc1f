package worker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connoryin/crawler/internal/htmlparse"
	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestLinkFilterRejectsNonHTMLExtensions(t *testing.T) {
	p := &Pool{}
	rejected := urlmodel.MustParse("http://example.com/report.pdf")
	assert.False(t, p.linkFilter(rejected, htmlparse.TagInfo{}))

	accepted := urlmodel.MustParse("http://example.com/index.html")
	assert.True(t, p.linkFilter(accepted, htmlparse.TagInfo{}))
}

func TestLinkFilterRejectsNonEnglishHostPrefix(t *testing.T) {
	p := &Pool{}
	rejected := urlmodel.MustParse("http://de.example.com/page")
	assert.False(t, p.linkFilter(rejected, htmlparse.TagInfo{}))

	accepted := urlmodel.MustParse("http://en.example.com/page")
	assert.True(t, p.linkFilter(accepted, htmlparse.TagInfo{}))
}

// linkFilter's tag-language checks (hreflang, falling back to lang) are
// only reachable through a real <a> tag scan, since TagInfo's attribute
// string is unexported.
func TestLinkFilterFallsBackToLangWhenNoHreflang(t *testing.T) {
	p := &Pool{}
	parser := htmlparse.New(p.linkFilter)

	info, err := parser.Parse(`<a href="/fr" lang="fr">bonjour</a>`)
	require.NoError(t, err)
	assert.Empty(t, info.Links, "lang=fr with no hreflang should be filtered")

	info, err = parser.Parse(`<a href="/en" lang="en">hello</a>`)
	require.NoError(t, err)
	require.Len(t, info.Links, 1)
}

func TestLinkFilterHreflangSubstringContainsEn(t *testing.T) {
	p := &Pool{}
	parser := htmlparse.New(p.linkFilter)

	info, err := parser.Parse(`<a href="/gb" hreflang="en-GB">hello</a>`)
	require.NoError(t, err)
	require.Len(t, info.Links, 1, "en-GB contains the substring \"en\" and must pass")

	info, err = parser.Parse(`<a href="/de" hreflang="de">hallo</a>`)
	require.NoError(t, err)
	assert.Empty(t, info.Links, "hreflang=de must be filtered")
}

func TestWriteArtifactFormat(t *testing.T) {
	dir := t.TempDir()
	p := &Pool{DataDir: dir}

	requestURL := urlmodel.MustParse("http://example.com/")
	info := htmlparse.Info{
		Words:      []string{"hello", "world"},
		TitleWords: []string{"title"},
		Links: []htmlparse.LinkInfo{
			{AnchorWords: []string{"click", "here"}},
		},
	}
	links := []urlmodel.URL{urlmodel.MustParse("http://example.com/x")}

	require.NoError(t, p.writeArtifact(requestURL, info, links))

	data, err := os.ReadFile(filepath.Join(dir, "0000000000.txt"))
	require.NoError(t, err)

	lines := strings.Split(string(data), "\n")
	assert.Equal(t, "http://example.com/", lines[0])
	assert.Equal(t, "2 hello world", lines[1])
	assert.Equal(t, "1 title", lines[2])
	assert.Equal(t, "1", lines[3])
	assert.Equal(t, "http://example.com/x", lines[4])
	assert.Equal(t, "2 click here", lines[5])
	assert.Equal(t, "false", lines[6])
}

func TestWriteArtifactRecordsBaseURL(t *testing.T) {
	dir := t.TempDir()
	p := &Pool{DataDir: dir}
	p.SetSequence(5)

	requestURL := urlmodel.MustParse("http://example.com/")
	base := urlmodel.MustParse("http://example.com/base/")
	info := htmlparse.Info{Base: &base}

	require.NoError(t, p.writeArtifact(requestURL, info, nil))

	data, err := os.ReadFile(filepath.Join(dir, "0000000005.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "true http://example.com/base/")
}
