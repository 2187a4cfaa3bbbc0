//go:build js && wasm

package mirror

import (
	"context"
	"fmt"
	"syscall/js"
)

// JSCacheStorage adapts the browser CacheStorage API (self.caches) to
// the CacheStorage interface. Responses are materialized to byte slices
// on both sides of the boundary; bodies here are small JSON payloads
// and page shells, never streams.
type JSCacheStorage struct {
	caches js.Value
}

// NewJSCacheStorage returns the global cache storage. Errors if the
// environment has no caches object (e.g. a non-worker context).
func NewJSCacheStorage() (*JSCacheStorage, error) {
	caches := js.Global().Get("caches")
	if caches.IsUndefined() || caches.IsNull() {
		return nil, fmt.Errorf("caches API unavailable")
	}
	return &JSCacheStorage{caches: caches}, nil
}

func (s *JSCacheStorage) Match(ctx context.Context, req *Request) (*Response, bool, error) {
	val, err := await(ctx, s.caches.Call("match", req.URL))
	if err != nil {
		return nil, false, fmt.Errorf("caches.match: %w", err)
	}
	if val.IsUndefined() || val.IsNull() {
		return nil, false, nil
	}
	resp, err := fromJSResponse(ctx, val)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (s *JSCacheStorage) Put(ctx context.Context, cacheName string, req *Request, resp *Response) error {
	cache, err := await(ctx, s.caches.Call("open", cacheName))
	if err != nil {
		return fmt.Errorf("caches.open %s: %w", cacheName, err)
	}
	if _, err := await(ctx, cache.Call("put", req.URL, toJSResponse(resp))); err != nil {
		return fmt.Errorf("cache.put %s: %w", req.URL, err)
	}
	return nil
}

func (s *JSCacheStorage) Names(ctx context.Context) ([]string, error) {
	val, err := await(ctx, s.caches.Call("keys"))
	if err != nil {
		return nil, fmt.Errorf("caches.keys: %w", err)
	}
	names := make([]string, val.Length())
	for i := range names {
		names[i] = val.Index(i).String()
	}
	return names, nil
}

func (s *JSCacheStorage) Delete(ctx context.Context, cacheName string) (bool, error) {
	val, err := await(ctx, s.caches.Call("delete", cacheName))
	if err != nil {
		return false, fmt.Errorf("caches.delete %s: %w", cacheName, err)
	}
	return val.Truthy(), nil
}

// Compile-time interface check
var _ CacheStorage = (*JSCacheStorage)(nil)

func toJSResponse(resp *Response) js.Value {
	init := map[string]any{
		"status": resp.Status,
	}
	if resp.ContentType != "" {
		init["headers"] = map[string]any{"Content-Type": resp.ContentType}
	}
	return js.Global().Get("Response").New(string(resp.Body), js.ValueOf(init))
}

func fromJSResponse(ctx context.Context, val js.Value) (*Response, error) {
	body, err := await(ctx, val.Call("text"))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp := &Response{
		Status: val.Get("status").Int(),
		Body:   []byte(body.String()),
	}
	if ct := val.Get("headers").Call("get", "Content-Type"); !ct.IsNull() {
		resp.ContentType = ct.String()
	}
	return resp, nil
}

// await blocks until the promise settles or the context is done.
func await(ctx context.Context, promise js.Value) (js.Value, error) {
	type settled struct {
		value js.Value
		err   error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		var v js.Value
		if len(args) > 0 {
			v = args[0]
		}
		done <- settled{value: v}
		return nil
	})
	defer onResolve.Release()
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		msg := "promise rejected"
		if len(args) > 0 {
			msg = js.Global().Get("String").Invoke(args[0]).String()
		}
		done <- settled{err: fmt.Errorf("%s", msg)}
		return nil
	})
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	select {
	case s := <-done:
		return s.value, s.err
	case <-ctx.Done():
		return js.Value{}, ctx.Err()
	}
}
