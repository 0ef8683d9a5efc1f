// Package urlmodel parses, combines, and canonicalizes the URLs the crawler
// discovers. It reproduces the two-cursor scan of original_source's
// core/net/url.cpp rather than delegating to net/url, because net/url
// rejects and normalizes inputs the original accepts (a scheme-less
// "//host:port/path", which defaults to http, for one). A string with no
// "//" at all is a relative URL.
package urlmodel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotSupported is returned when a URL's scheme is neither http nor https.
var ErrNotSupported = errors.New("urlmodel: only http and https URLs are supported")

// ErrMalformed is returned when a URL string cannot be parsed.
var ErrMalformed = errors.New("urlmodel: the URL string is malformed")

// ErrNotAbsolute is returned by Combine when the base URL is relative.
var ErrNotAbsolute = errors.New("urlmodel: the base URL is not an absolute URL")

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
}

// URL represents either an absolute or a relative URL. An absolute URL
// always has Scheme, Host, Port, Path, and Query populated; a relative URL
// only has its canonical string (the raw text it was parsed from).
type URL struct {
	raw        string
	absolute   bool
	scheme     string
	host       string
	port       int
	path       string
	query      string
}

// Parse parses a URL string. Relative URLs (no "//" present) succeed with
// Absolute()==false. Absolute URLs with an unsupported scheme fail with
// ErrNotSupported.
func Parse(s string) (URL, error) {
	idx := strings.Index(s, "//")
	if idx == -1 {
		return URL{raw: s, absolute: false}, nil
	}

	var scheme string
	if idx > 0 {
		scheme = strings.ToLower(s[:idx-1])
	} else {
		scheme = "http"
	}
	if _, ok := defaultPorts[scheme]; !ok {
		return URL{}, fmt.Errorf("%w: %q", ErrNotSupported, scheme)
	}

	begin := idx + 2
	if begin >= len(s) {
		return URL{}, ErrMalformed
	}
	rest := s[begin:]

	hostEnd := strings.IndexAny(rest, ":/")
	var host string
	if hostEnd == -1 {
		host = rest
	} else {
		host = rest[:hostEnd]
	}
	host = strings.ToLower(host)

	port := defaultPorts[scheme]
	pathStart := len(rest)
	if hostEnd != -1 {
		pathStart = hostEnd
		if rest[hostEnd] == ':' {
			portStart := hostEnd + 1
			portEnd := strings.IndexByte(rest[portStart:], '/')
			var portStr string
			if portEnd == -1 {
				portStr = rest[portStart:]
				pathStart = len(rest)
			} else {
				portStr = rest[portStart : portStart+portEnd]
				pathStart = portStart + portEnd
			}
			p, err := strconv.Atoi(portStr)
			if err != nil {
				return URL{}, ErrMalformed
			}
			port = p
		}
	}

	var path, query string
	if pathStart < len(rest) {
		remainder := rest[pathStart:]
		qmOrHash := strings.IndexAny(remainder, "?#")
		if qmOrHash == -1 {
			path = remainder
		} else {
			path = remainder[:qmOrHash]
		}
		if qmOrHash != -1 && remainder[qmOrHash] == '?' {
			afterQ := remainder[qmOrHash+1:]
			hashPos := strings.IndexByte(afterQ, '#')
			if hashPos == -1 {
				query = afterQ
			} else {
				query = afterQ[:hashPos]
			}
		}
	} else {
		path = "/"
	}

	u := URL{
		absolute: true,
		scheme:   scheme,
		host:     host,
		port:     port,
		path:     path,
		query:    query,
	}
	u.canonicalize()
	return u, nil
}

// MustParse parses s, panicking on error. Intended for constants in tests.
func MustParse(s string) URL {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Combine resolves relative against base, which must be absolute.
func Combine(base URL, relative string) (URL, error) {
	if !base.absolute {
		return URL{}, ErrNotAbsolute
	}

	qmOrHash := strings.IndexAny(relative, "?#")
	var pathPart string
	if qmOrHash == -1 {
		pathPart = relative
	} else {
		pathPart = relative[:qmOrHash]
	}

	var path string
	if strings.HasPrefix(pathPart, "/") {
		path = pathPart
	} else {
		path = base.path + pathPart
	}

	var query string
	if qmOrHash != -1 && relative[qmOrHash] == '?' {
		afterQ := relative[qmOrHash+1:]
		hashPos := strings.IndexByte(afterQ, '#')
		if hashPos == -1 {
			query = afterQ
		} else {
			query = afterQ[:hashPos]
		}
	}

	u := URL{
		absolute: true,
		scheme:   base.scheme,
		host:     base.host,
		port:     base.port,
		path:     path,
		query:    query,
	}
	u.canonicalize()
	return u, nil
}

func (u *URL) canonicalize() {
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.host)
	if u.port != defaultPorts[u.scheme] {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.port))
	}
	b.WriteString(u.path)
	if u.query != "" {
		b.WriteByte('?')
		b.WriteString(u.query)
	}
	u.raw = b.String()
}

// Absolute reports whether the URL carries scheme/host/port/path/query.
func (u URL) Absolute() bool { return u.absolute }

// Scheme returns the URL's scheme. Panics if the URL is not absolute.
func (u URL) Scheme() string { u.mustBeAbsolute(); return u.scheme }

// Host returns the lowercased host. Panics if the URL is not absolute.
func (u URL) Host() string { u.mustBeAbsolute(); return u.host }

// Port returns the port, defaulted from the scheme if unspecified.
// Panics if the URL is not absolute.
func (u URL) Port() int { u.mustBeAbsolute(); return u.port }

// Path returns the local path, defaulting to "/". Panics if not absolute.
func (u URL) Path() string { u.mustBeAbsolute(); return u.path }

// Query returns the query string (without leading '?'), possibly empty.
// Panics if the URL is not absolute.
func (u URL) Query() string { u.mustBeAbsolute(); return u.query }

// PathAndQuery returns Path, plus "?"+Query when the query is non-empty.
func (u URL) PathAndQuery() string {
	u.mustBeAbsolute()
	if u.query == "" {
		return u.path
	}
	return u.path + "?" + u.query
}

func (u URL) mustBeAbsolute() {
	if !u.absolute {
		panic("urlmodel: operation requires an absolute URL")
	}
}

// String returns the canonical string form: for absolute URLs this is
// scheme://host[:port]path[?query]; for relative URLs it is the raw text.
func (u URL) String() string { return u.raw }

// Equal reports canonical-string equality.
func (u URL) Equal(other URL) bool { return u.raw == other.raw }
