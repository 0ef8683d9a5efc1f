// Package htmlparse implements a streaming HTML tag scanner, ported from
// original_source/src/html_parser/html_parser.cpp. It is a single
// left-to-right scan producing words, title words, links, and an optional
// base URL — deliberately not a conforming tree parser, so
// golang.org/x/net/html and goquery are not usable here (see DESIGN.md).
package htmlparse

import (
	"errors"
	"strings"

	"github.com/connoryin/crawler/internal/urlmodel"
)

// ErrMalformed is returned for an unclosed tag or a missing closing tag on
// a Title/DiscardElement span.
var ErrMalformed = errors.New("htmlparse: malformed HTML")

// TagType classifies a scanned tag.
type TagType int

const (
	Opening TagType = iota
	Closing
	SelfClosing
)

// TagInfo is the result of scanning one "<...>" span.
type TagInfo struct {
	Type   TagType
	Name   string
	params string
}

// ValueOf performs a deliberately lax positional attribute lookup: find
// the substring "name", skip "name"+1 (the '='), optionally skip a single
// quote character, then read until the next quote.
func (t TagInfo) ValueOf(name string) (string, bool) {
	pos := strings.Index(t.params, name)
	if pos == -1 {
		return "", false
	}
	pos += len(name) + 1
	if pos >= len(t.params) {
		return "", false
	}
	if t.params[pos] == '\'' || t.params[pos] == '"' {
		pos++
	}
	end := strings.IndexAny(t.params[pos:], "'\"")
	if end == -1 {
		return t.params[pos:], true
	}
	return t.params[pos : pos+end], true
}

func (t TagInfo) closingTagString() string {
	return "</" + t.Name + ">"
}

func parseTag(tagString string) (TagInfo, error) {
	if len(tagString) < 2 {
		return TagInfo{}, ErrMalformed
	}
	var info TagInfo
	begin, end := 0, len(tagString)
	switch {
	case tagString[1] != '/' && tagString[end-2] != '/':
		info.Type = Opening
		begin, end = 1, end-1
	case tagString[1] == '/' && tagString[end-2] != '/':
		info.Type = Closing
		begin, end = 2, end-1
	case tagString[1] != '/' && tagString[end-2] == '/':
		info.Type = SelfClosing
		begin, end = 1, end-2
	default:
		return TagInfo{}, ErrMalformed
	}

	body := tagString[begin:end]
	nameEnd := strings.IndexFunc(body, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' })
	if nameEnd == -1 {
		info.Name = strings.ToLower(body)
		info.params = ""
	} else {
		info.Name = strings.ToLower(body[:nameEnd])
		info.params = body[nameEnd:]
	}
	return info, nil
}

// LinkInfo is one discovered link and the anchor text tokens observed
// between its opening <a> and matching </a>. Embed links carry no anchor
// tracking.
type LinkInfo struct {
	URL         urlmodel.URL
	AnchorWords []string
}

// Info is the full result of parsing one HTML document.
type Info struct {
	Words      []string
	TitleWords []string
	Links      []LinkInfo
	Base       *urlmodel.URL
}

// LinkFilter decides whether a discovered anchor/embed link is kept, given
// its parsed URL and the tag it came from (for hreflang/lang inspection).
type LinkFilter func(u urlmodel.URL, tag TagInfo) bool

type tagAction int

const (
	actionDiscard tagAction = iota
	actionAnchor
	actionBase
	actionEmbed
	actionTitle
	actionDiscardElement
)

// actionTable is ported verbatim from HtmlParser::_actionMap.
var actionTable = map[string]tagAction{
	"!--": actionDiscard, "!doctype": actionDiscard, "a": actionAnchor,
	"abbr": actionDiscard, "acronym": actionDiscard, "address": actionDiscard,
	"applet": actionDiscard, "area": actionDiscard, "article": actionDiscard,
	"aside": actionDiscard, "audio": actionDiscard, "b": actionDiscard,
	"base": actionBase, "basefont": actionDiscard, "bdi": actionDiscard,
	"bdo": actionDiscard, "bgsound": actionDiscard, "big": actionDiscard,
	"blink": actionDiscard, "blockquote": actionDiscard, "body": actionDiscard,
	"br": actionDiscard, "button": actionDiscard, "canvas": actionDiscard,
	"caption": actionDiscard, "center": actionDiscard, "cite": actionDiscard,
	"code": actionDiscard, "col": actionDiscard, "colgroup": actionDiscard,
	"content": actionDiscard, "data": actionDiscard, "datalist": actionDiscard,
	"dd": actionDiscard, "del": actionDiscard, "details": actionDiscard,
	"dfn": actionDiscard, "dialog": actionDiscard, "dir": actionDiscard,
	"div": actionDiscard, "dl": actionDiscard, "dt": actionDiscard,
	"em": actionDiscard, "embed": actionEmbed, "fieldset": actionDiscard,
	"figcaption": actionDiscard, "figure": actionDiscard, "font": actionDiscard,
	"footer": actionDiscard, "form": actionDiscard, "frame": actionDiscard,
	"frameset": actionDiscard, "h1": actionDiscard, "h2": actionDiscard,
	"h3": actionDiscard, "h4": actionDiscard, "h5": actionDiscard,
	"h6": actionDiscard, "head": actionDiscard, "header": actionDiscard,
	"hgroup": actionDiscard, "hr": actionDiscard, "html": actionDiscard,
	"i": actionDiscard, "iframe": actionDiscard, "img": actionDiscard,
	"input": actionDiscard, "ins": actionDiscard, "isindex": actionDiscard,
	"kbd": actionDiscard, "keygen": actionDiscard, "label": actionDiscard,
	"legend": actionDiscard, "li": actionDiscard, "link": actionDiscard,
	"listing": actionDiscard, "main": actionDiscard, "map": actionDiscard,
	"mark": actionDiscard, "marquee": actionDiscard, "menu": actionDiscard,
	"menuitem": actionDiscard, "meta": actionDiscard, "meter": actionDiscard,
	"nav": actionDiscard, "nobr": actionDiscard, "noframes": actionDiscard,
	"noscript": actionDiscard, "object": actionDiscard, "ol": actionDiscard,
	"optgroup": actionDiscard, "option": actionDiscard, "output": actionDiscard,
	"p": actionDiscard, "param": actionDiscard, "picture": actionDiscard,
	"plaintext": actionDiscard, "pre": actionDiscard, "progress": actionDiscard,
	"q": actionDiscard, "rp": actionDiscard, "rt": actionDiscard,
	"rtc": actionDiscard, "ruby": actionDiscard, "s": actionDiscard,
	"samp": actionDiscard, "script": actionDiscardElement, "section": actionDiscard,
	"select": actionDiscard, "shadow": actionDiscard, "slot": actionDiscard,
	"small": actionDiscard, "source": actionDiscard, "spacer": actionDiscard,
	"span": actionDiscard, "strike": actionDiscard, "strong": actionDiscard,
	"style": actionDiscardElement, "sub": actionDiscard, "summary": actionDiscard,
	"sup": actionDiscard, "svg": actionDiscardElement, "table": actionDiscard,
	"tbody": actionDiscard, "td": actionDiscard, "template": actionDiscard,
	"textarea": actionDiscard, "tfoot": actionDiscard, "th": actionDiscard,
	"thead": actionDiscard, "time": actionDiscard, "title": actionTitle,
	"tr": actionDiscard, "track": actionDiscard, "tt": actionDiscard,
	"u": actionDiscard, "ul": actionDiscard, "var": actionDiscard,
	"video": actionDiscard, "wbr": actionDiscard, "xmp": actionDiscard,
}

// Parser scans HTML strings into Info, per-parser-instance link filter.
type Parser struct {
	LinkFilter LinkFilter
}

// New returns a Parser using filter to accept/reject discovered links.
// A nil filter accepts everything.
func New(filter LinkFilter) *Parser {
	if filter == nil {
		filter = func(urlmodel.URL, TagInfo) bool { return true }
	}
	return &Parser{LinkFilter: filter}
}

// Parse scans html into an Info. Unclosed tags and missing Title/
// DiscardElement closing tags fail with ErrMalformed.
func (p *Parser) Parse(html string) (Info, error) {
	var info Info
	currentIdx := -1 // index into info.Links receiving anchor words, or -1

	beginPos := 0
	for {
		endPos := strings.IndexByte(html[beginPos:], '<')
		var textEnd int
		if endPos == -1 {
			textEnd = len(html)
		} else {
			textEnd = beginPos + endPos
		}

		words := tokenize(html[beginPos:textEnd])
		if currentIdx != -1 {
			info.Links[currentIdx].AnchorWords = append(info.Links[currentIdx].AnchorWords, words...)
		}
		info.Words = append(info.Words, words...)

		if endPos == -1 {
			break
		}
		tagStart := textEnd
		closeRel := strings.IndexByte(html[tagStart:], '>')
		if closeRel == -1 {
			return Info{}, ErrMalformed
		}
		tagEnd := tagStart + closeRel + 1

		tag, err := parseTag(html[tagStart:tagEnd])
		if err != nil {
			return Info{}, err
		}
		action, ok := actionTable[tag.Name]
		if !ok {
			action = actionDiscard
		}

		nextPos := tagEnd

		switch tag.Type {
		case Opening:
			switch action {
			case actionAnchor:
				if hrefRaw, ok := tag.ValueOf("href"); ok {
					if processed, ok := preprocessURLString(hrefRaw); ok {
						if u, err := urlmodel.Parse(processed); err == nil && p.LinkFilter(u, tag) {
							info.Links = append(info.Links, LinkInfo{URL: u})
							currentIdx = len(info.Links) - 1
						}
					}
				}
			case actionBase:
				if info.Base == nil {
					if hrefRaw, ok := tag.ValueOf("href"); ok {
						if processed, ok := preprocessURLString(hrefRaw); ok {
							if u, err := urlmodel.Parse(processed); err == nil {
								info.Base = &u
							}
						}
					}
				}
			case actionEmbed:
				if srcRaw, ok := tag.ValueOf("src"); ok {
					if processed, ok := preprocessURLString(srcRaw); ok {
						if u, err := urlmodel.Parse(processed); err == nil && p.LinkFilter(u, tag) {
							info.Links = append(info.Links, LinkInfo{URL: u})
						}
					}
				}
			case actionDiscardElement:
				closing := tag.closingTagString()
				idx := strings.Index(html[tagEnd:], closing)
				if idx == -1 {
					return Info{}, ErrMalformed
				}
				nextPos = tagEnd + idx + len(closing)
			case actionTitle:
				closing := tag.closingTagString()
				idx := strings.Index(html[tagEnd:], closing)
				if idx == -1 {
					return Info{}, ErrMalformed
				}
				titleText := html[tagEnd : tagEnd+idx]
				info.TitleWords = append(info.TitleWords, tokenize(titleText)...)
				nextPos = tagEnd + idx + len(closing)
			case actionDiscard:
				// no-op
			}
		case Closing:
			if action == actionAnchor {
				currentIdx = -1
			}
		case SelfClosing:
			if action == actionBase && info.Base == nil {
				if hrefRaw, ok := tag.ValueOf("href"); ok {
					if processed, ok := preprocessURLString(hrefRaw); ok {
						if u, err := urlmodel.Parse(processed); err == nil {
							info.Base = &u
						}
					}
				}
			}
		}

		beginPos = nextPos
	}

	return info, nil
}

// tokenize splits on whitespace and preprocesses each token.
func tokenize(s string) []string {
	var tokens []string
	for _, field := range strings.Fields(s) {
		if tok, ok := preprocessToken(field); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// preprocessToken trims leading/trailing non-alphanumerics and lowercases;
// empty results are dropped.
func preprocessToken(token string) (string, bool) {
	start := strings.IndexFunc(token, isAlnum)
	if start == -1 {
		return "", false
	}
	end := start
	for i, r := range token {
		if isAlnum(r) {
			end = i + len(string(r))
		}
	}
	return strings.ToLower(token[start:end]), true
}

// preprocessURLString rejects whitespace-containing strings and any
// fragment-only string (a bare leading '#'), truncating at '#' otherwise.
func preprocessURLString(s string) (string, bool) {
	if strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' }) != -1 {
		return "", false
	}
	if pos := strings.IndexByte(s, '#'); pos != -1 {
		if pos == 0 {
			return "", false
		}
		s = s[:pos]
	}
	return s, true
}
