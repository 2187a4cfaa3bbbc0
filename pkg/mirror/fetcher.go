package mirror

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// HTTPFetcher performs the network tier over net/http. Under js/wasm the
// standard transport rides the platform fetch, so the same implementation
// serves both runtimes. There is no explicit timeout here: tiers are
// bounded by the resolution chain's per-tier deadline.
type HTTPFetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// BaseURL is prepended to path-only request URLs.
	BaseURL string
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// Do sends the request and materializes the response body.
func (f *HTTPFetcher) Do(ctx context.Context, req *Request) (*Response, error) {
	url := req.URL
	if f.BaseURL != "" && len(url) > 0 && url[0] == '/' {
		url = f.BaseURL + url
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, err
	}
	if len(req.Body) > 0 {
		hreq.Header.Set("Content-Type", "application/json")
	}

	hresp, err := f.client().Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:      hresp.StatusCode,
		ContentType: hresp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// Compile-time interface check
var _ Fetcher = (*HTTPFetcher)(nil)
