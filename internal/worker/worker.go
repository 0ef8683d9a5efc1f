// Package worker implements the crawl worker pool, ported from
// original_source/src/crawler/crawler.cpp's Crawler::doWork,
// Crawler::filterLink and the artifact-file writer.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/connoryin/crawler/internal/htmlparse"
	"github.com/connoryin/crawler/internal/httpclient"
	"github.com/connoryin/crawler/internal/logging"
	"github.com/connoryin/crawler/internal/robots"
	"github.com/connoryin/crawler/internal/scheduler"
	"github.com/connoryin/crawler/internal/urlmodel"
)

// BatchSize is the number of URLs a worker dequeues per scheduler call.
const BatchSize = 5

// SampleFactor is the scheduler's over-sample multiplier.
const SampleFactor = 4

// Router is the capability a worker uses to hand off a discovered or
// redirected URL, either into the local frontier or to a peer's send
// queue.
type Router interface {
	Route(u urlmodel.URL)
}

// Pool runs NumThreads worker loops against a shared Scheduler.
type Pool struct {
	ID        int
	Sched     *scheduler.Scheduler
	Robots    *robots.Catalog
	Client    *httpclient.Client
	Router    Router
	Log       *logging.Sink
	DataDir   string
	OnCrawled func() // called once per artifact successfully written
	sequence  uint64
}

// New builds a Pool. sequence starts at 0; callers resuming from a
// checkpoint should set it via SetSequence before Run.
func New(id int, sched *scheduler.Scheduler, cat *robots.Catalog, router Router, log *logging.Sink, dataDir string) *Pool {
	return &Pool{ID: id, Sched: sched, Robots: cat, Client: httpclient.New(), Router: router, Log: log, DataDir: dataDir}
}

// SetSequence resets the artifact sequence counter, used when resuming a
// checkpoint so filenames continue rather than restart at 0.
func (p *Pool) SetSequence(n uint64) { atomic.StoreUint64(&p.sequence, n) }

// Sequence returns the current artifact sequence counter. The checkpoint
// engine does not read it; it persists the crawl counter instead.
func (p *Pool) Sequence() uint64 { return atomic.LoadUint64(&p.sequence) }

// Run drives one worker loop until running returns false. Workers observe
// running on each loop iteration, including after each condvar wake, so
// a shutdown signal takes effect promptly rather than only between
// batches.
func (p *Pool) Run(ctx context.Context, threadID int, running func() bool) {
	filter := htmlparse.New(p.linkFilter)
	for running() {
		batch := p.Sched.GetNextUrlBatch(BatchSize, SampleFactor)
		if batch == nil {
			return // frontier closed
		}
		for _, u := range batch {
			if !running() {
				return
			}
			p.processOne(ctx, threadID, u, filter)
		}
	}
}

func (p *Pool) processOne(ctx context.Context, threadID int, requestURL urlmodel.URL, parser *htmlparse.Parser) {
	if !p.Robots.IsAllowed(requestURL) {
		p.Log.Line(threadID, logging.CategoryIgn, "disallowed by robots.txt", requestURL.String())
		return
	}

	if err := p.Sched.HostLimiter(requestURL.Host()).Wait(ctx); err != nil {
		return
	}

	resp, finalURL, err := p.Client.Get(requestURL)
	if err != nil {
		p.Log.Line(threadID, logging.CategoryErr, err.Error(), requestURL.String())
		return
	}

	if resp.StatusCode == 301 || resp.StatusCode == 308 {
		if !resp.Headers.HasLocation() {
			p.Log.Line(threadID, logging.CategoryErr, "redirect missing Location", finalURL.String())
			return
		}
		redirected, err := urlmodel.Parse(resp.Headers.Location)
		if err != nil {
			p.Log.Line(threadID, logging.CategoryErr, "malformed redirect Location", finalURL.String())
			return
		}
		if !redirected.Absolute() {
			redirected, err = urlmodel.Combine(finalURL, resp.Headers.Location)
			if err != nil {
				p.Log.Line(threadID, logging.CategoryErr, "malformed redirect Location", finalURL.String())
				return
			}
		}
		p.Router.Route(redirected)
		return
	}

	if resp.Headers.HasContentLanguage() && !strings.Contains(strings.ToLower(resp.Headers.ContentLanguage), "en") {
		p.Log.Line(threadID, logging.CategoryIgn, "non-English Content-Language", finalURL.String())
		return
	}
	if resp.Headers.HasContentType() && !strings.Contains(strings.ToLower(resp.Headers.ContentType), "text/html") {
		p.Log.Line(threadID, logging.CategoryIgn, "non-HTML Content-Type", finalURL.String())
		return
	}

	info, err := parser.Parse(string(resp.Body))
	if err != nil {
		p.Log.Line(threadID, logging.CategoryErr, "malformed HTML: "+err.Error(), finalURL.String())
		return
	}

	base := finalURL
	if info.Base != nil && info.Base.Absolute() {
		base = *info.Base
	}

	resolvedLinks := make([]urlmodel.URL, 0, len(info.Links))
	for _, link := range info.Links {
		resolved := link.URL
		if !resolved.Absolute() {
			r, err := urlmodel.Combine(base, resolved.String())
			if err != nil {
				continue
			}
			resolved = r
		}
		resolvedLinks = append(resolvedLinks, resolved)
	}

	if err := p.writeArtifact(finalURL, info, resolvedLinks); err != nil {
		p.Log.Error(err, "writing artifact failed")
		return
	}
	if p.OnCrawled != nil {
		p.OnCrawled()
	}
	p.Log.Line(threadID, logging.CategoryGet, fmt.Sprintf("%d bytes", len(resp.Body)), finalURL.String())

	for _, resolved := range resolvedLinks {
		p.Router.Route(resolved)
	}
}

// writeArtifact serializes info to <dataDir>/<10-digit seq>.txt: the
// request URL, a word-count-prefixed body word list, a word-count-prefixed
// title word list, a link count, then per link the URL and its
// anchor-word list, and finally the base URL as the page declared it (not
// resolved against the request URL) if there was one.
func (p *Pool) writeArtifact(requestURL urlmodel.URL, info htmlparse.Info, links []urlmodel.URL) error {
	seq := atomic.AddUint64(&p.sequence, 1) - 1
	name := fmt.Sprintf("%010d.txt", seq)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", requestURL.String())
	fmt.Fprintf(&b, "%d", len(info.Words))
	for _, w := range info.Words {
		b.WriteByte(' ')
		b.WriteString(w)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%d", len(info.TitleWords))
	for _, w := range info.TitleWords {
		b.WriteByte(' ')
		b.WriteString(w)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%d\n", len(links))
	for i, l := range links {
		fmt.Fprintf(&b, "%s\n", l.String())
		anchors := info.Links[i].AnchorWords
		fmt.Fprintf(&b, "%d", len(anchors))
		for _, w := range anchors {
			b.WriteByte(' ')
			b.WriteString(w)
		}
		b.WriteByte('\n')
	}

	if info.Base != nil {
		fmt.Fprintf(&b, "true %s\n", info.Base.String())
	} else {
		b.WriteString("false\n")
	}

	return os.WriteFile(filepath.Join(p.DataDir, name), []byte(b.String()), 0o644)
}

// nonHTMLExtensions is the set of path suffixes filterLink drops before a
// link is ever fetched, ported verbatim from Crawler::filterLink's
// nonHtmlExtensions table (crawler.cpp:363-383).
var nonHTMLExtensions = map[string]bool{
	"gif": true, "jpeg": true, "jpg": true, "json": true, "mp3": true,
	"mp4": true, "ogg": true, "ogv": true, "pdf": true, "png": true,
	"rdf": true, "rss": true, "svg": true, "tiff": true, "ttf": true,
	"txt": true, "webm": true, "xml": true, "zip": true,
}

// nonEnglishLanguages is the set of ISO-639-family subdomain/language
// codes filterLink treats as non-English, ported verbatim from
// Crawler::filterLink's nonEnglishLanguages table (crawler.cpp:398-537).
// It doubles as both the hreflang/lang tag check and the URL host-prefix
// check below.
var nonEnglishLanguages = map[string]bool{
	"aa": true, "ab": true, "ace": true, "af": true, "ak": true, "als": true,
	"am": true, "an": true, "ang": true, "ar": true, "arc": true, "arz": true,
	"as": true, "ast": true, "az": true, "azb": true, "ba": true, "bar": true,
	"bcl": true, "be": true, "be-tarask": true, "bg": true, "bh": true,
	"bn": true, "br": true, "bs": true, "ca": true, "ce": true, "ceb": true,
	"chr": true, "cs": true, "csb": true, "cy": true, "da": true, "de": true,
	"diq": true, "el": true, "eo": true, "es": true, "et": true, "eu": true,
	"fa": true, "fi": true, "fo": true, "fr": true, "frr": true, "fy": true,
	"ga": true, "gd": true, "gl": true, "gn": true, "gom": true, "gu": true,
	"ha": true, "hak": true, "he": true, "hi": true, "hr": true, "hsb": true,
	"ht": true, "hu": true, "hy": true, "hyw": true, "ia": true, "id": true,
	"ie": true, "io": true, "is": true, "it": true, "ja": true, "jv": true,
	"ka": true, "kk": true, "kl": true, "kn": true, "ko": true, "ks": true,
	"ku": true, "ky": true, "la": true, "lad": true, "li": true, "lij": true,
	"lo": true, "lt": true, "lv": true, "mg": true, "min": true, "mk": true,
	"ml": true, "mr": true, "ms": true, "mt": true, "my": true, "na": true,
	"nah": true, "nap": true, "nl": true, "nn": true, "no": true, "oc": true,
	"or": true, "pa": true, "pfl": true, "pl": true, "pms": true, "ps": true,
	"pt": true, "ro": true, "ru": true, "sa": true, "sah": true, "sd": true,
	"sh": true, "sk": true, "sl": true, "sq": true, "sr": true, "sv": true,
	"sw": true, "ta": true, "te": true, "tg": true, "th": true, "tr": true,
	"tt": true, "uk": true, "ur": true, "uz": true, "vec": true, "vi": true,
	"vo": true, "wa": true, "war": true, "yi": true, "zh": true,
	"zh-min-nan": true, "zh-yue": true,
}

// linkFilter mirrors Crawler::filterLink (crawler.cpp:360-543) in its
// three checks, in order: a path-extension check, a tag-language check
// (hreflang, falling back to lang, rejecting only when neither contains
// the substring "en"), and a URL host-prefix check against the same
// non-English language table.
func (p *Pool) linkFilter(u urlmodel.URL, tag htmlparse.TagInfo) bool {
	if u.Absolute() {
		path := u.Path()
		if dot := strings.LastIndexByte(path, '.'); dot != -1 {
			suffix := strings.ToLower(path[dot+1:])
			if nonHTMLExtensions[suffix] {
				return false
			}
		}
	}

	language, ok := tag.ValueOf("hreflang")
	if !ok {
		language, ok = tag.ValueOf("lang")
	}
	if ok && !strings.Contains(strings.ToLower(language), "en") {
		return false
	}

	if u.Absolute() {
		host := u.Host()
		prefix := host
		if dot := strings.IndexByte(host, '.'); dot != -1 {
			prefix = host[:dot]
		}
		if nonEnglishLanguages[strings.ToLower(prefix)] {
			return false
		}
	}

	return true
}
