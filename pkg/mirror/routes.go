package mirror

import (
	"net/url"
	"strconv"
	"strings"
)

// RouteClass selects the caching strategy for an intercepted request.
type RouteClass int

const (
	// RouteBypass: not intercepted (non-GET writes other than chat).
	RouteBypass RouteClass = iota
	// RouteChat: outbound AI chat POST. Network-only; queued on failure.
	RouteChat
	// RouteVerses: per-chapter verse GET. Network-first, structured-DB
	// fallback, then raw HTTP cache, then synthetic offline payload.
	RouteVerses
	// RouteBooks: books-list GET. Same pattern as RouteVerses.
	RouteBooks
	// RouteAPI: generic /api/ GET. Network-first, HTTP-cache fallback.
	RouteAPI
	// RouteStatic: static assets and navigable HTML. Cache-first with
	// background revalidation.
	RouteStatic
	// RouteOther: everything else. Network with bare cache fallback.
	RouteOther
)

func (c RouteClass) String() string {
	switch c {
	case RouteBypass:
		return "bypass"
	case RouteChat:
		return "chat"
	case RouteVerses:
		return "verses"
	case RouteBooks:
		return "books"
	case RouteAPI:
		return "api"
	case RouteStatic:
		return "static"
	default:
		return "other"
	}
}

// Classify maps a request to its route class, checked in priority order.
func Classify(req *Request) RouteClass {
	path := requestPath(req.URL)

	if req.Method != "GET" {
		if req.Method == "POST" && strings.Contains(path, "/api/nevin") {
			return RouteChat
		}
		return RouteBypass
	}

	switch {
	case strings.Contains(path, "/api/bible/verses/"):
		return RouteVerses
	case strings.Contains(path, "/api/bible/books"):
		return RouteBooks
	case strings.Contains(path, "/api/"):
		return RouteAPI
	case strings.HasPrefix(path, "/static/") || path == "/" || strings.HasSuffix(path, ".html"):
		return RouteStatic
	default:
		return RouteOther
	}
}

// requestPath extracts the path component from a full or path-only URL.
func requestPath(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

// parseVersePath pulls (book, chapter) out of /api/bible/verses/{book}/{ch}.
func parseVersePath(raw string) (book string, chapter int, ok bool) {
	parts := strings.Split(strings.TrimRight(requestPath(raw), "/"), "/")
	if len(parts) < 2 {
		return "", 0, false
	}
	chapter, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", 0, false
	}
	book, err = url.PathUnescape(parts[len(parts)-2])
	if err != nil || book == "" {
		return "", 0, false
	}
	return book, chapter, true
}
