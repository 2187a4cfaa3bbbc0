package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		want   RouteClass
	}{
		{"chat post", "POST", "/api/nevin/chat", RouteChat},
		{"chat post full url", "POST", "https://example.org/api/nevin/chat", RouteChat},
		{"other post bypassed", "POST", "/api/settings", RouteBypass},
		{"put bypassed", "PUT", "/api/bible/verses/Juan/3", RouteBypass},
		{"verses", "GET", "/api/bible/verses/Juan/3", RouteVerses},
		{"verses escaped book", "GET", "/api/bible/verses/1%20Juan/2", RouteVerses},
		{"books", "GET", "/api/bible/books", RouteBooks},
		{"generic api", "GET", "/api/promises/random", RouteAPI},
		{"static asset", "GET", "/static/css/style.css", RouteStatic},
		{"root shell", "GET", "/", RouteStatic},
		{"html page", "GET", "/chat.html", RouteStatic},
		{"other", "GET", "/favicon.ico", RouteOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&Request{Method: tt.method, URL: tt.url})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_VersesBeatsGenericAPI(t *testing.T) {
	// Priority order matters: the verse route contains "/api/" too.
	got := Classify(&Request{Method: "GET", URL: "/api/bible/verses/Salmos/23"})
	assert.Equal(t, RouteVerses, got)
}

func TestParseVersePath(t *testing.T) {
	book, chapter, ok := parseVersePath("/api/bible/verses/Juan/3")
	require.True(t, ok)
	assert.Equal(t, "Juan", book)
	assert.Equal(t, 3, chapter)

	book, chapter, ok = parseVersePath("https://example.org/api/bible/verses/1%20Juan/2")
	require.True(t, ok)
	assert.Equal(t, "1 Juan", book)
	assert.Equal(t, 2, chapter)

	// Trailing slash tolerated.
	_, chapter, ok = parseVersePath("/api/bible/verses/Juan/3/")
	require.True(t, ok)
	assert.Equal(t, 3, chapter)

	_, _, ok = parseVersePath("/api/bible/verses/Juan/notanumber")
	assert.False(t, ok)
}

func TestRouteClass_String(t *testing.T) {
	assert.Equal(t, "verses", RouteVerses.String())
	assert.Equal(t, "bypass", RouteBypass.String())
	assert.Equal(t, "other", RouteOther.String())
}
