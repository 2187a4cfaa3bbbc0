//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/tzotzilbible/gobible/pkg/mirror"
)

// Version info
const Version = "0.1.0"

// Global state
var worker *mirror.Mirror
var database *mirror.IDB

func main() {
	println("[TzotzilSW] WASM Ready v" + Version)

	// Register exports. Every operation that touches IndexedDB or the
	// Cache API blocks on browser promises, so each export returns a
	// Promise and does its work on a goroutine.
	js.Global().Set("TzotzilSW", js.ValueOf(map[string]interface{}{
		"version":       js.FuncOf(getVersion),
		"start":         js.FuncOf(start),
		"install":       js.FuncOf(install),
		"activate":      js.FuncOf(activate),
		"handleFetch":   js.FuncOf(handleFetch),
		"handleMessage": js.FuncOf(handleMessage),
		"syncPending":   js.FuncOf(syncPending),
	}))

	select {}
}

// getVersion returns the module version
func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// startConfig is the optional JSON argument to start().
type startConfig struct {
	Version      string   `json:"version"`
	StaticAssets []string `json:"staticAssets"`
	ChatEndpoint string   `json:"chatEndpoint"`
	BaseURL      string   `json:"baseURL"`
}

// start wires the worker: IndexedDB, the Cache API, and the network.
// Args: [configJSON string] - optional
func start(this js.Value, args []js.Value) interface{} {
	var cfg startConfig
	if len(args) > 0 && args[0].String() != "" {
		if err := json.Unmarshal([]byte(args[0].String()), &cfg); err != nil {
			return errorResult("invalid config json: " + err.Error())
		}
	}

	return promisify(func(ctx context.Context) (interface{}, error) {
		if database != nil {
			database.Close()
		}
		db, err := mirror.OpenIDB(ctx)
		if err != nil {
			return nil, err
		}
		caches, err := mirror.NewJSCacheStorage()
		if err != nil {
			db.Close()
			return nil, err
		}
		database = db
		worker = mirror.New(
			&mirror.HTTPFetcher{BaseURL: cfg.BaseURL},
			caches,
			db,
			db,
			mirror.Config{
				Version:      cfg.Version,
				StaticAssets: cfg.StaticAssets,
				ChatEndpoint: cfg.ChatEndpoint,
			},
		)
		return successResult("started"), nil
	})
}

// install pre-caches the configured static assets.
func install(this js.Value, args []js.Value) interface{} {
	if worker == nil {
		return errorResult("not started")
	}
	return promisify(func(ctx context.Context) (interface{}, error) {
		if err := worker.Install(ctx); err != nil {
			return nil, err
		}
		return successResult("installed"), nil
	})
}

// activate drops caches from previous versions.
func activate(this js.Value, args []js.Value) interface{} {
	if worker == nil {
		return errorResult("not started")
	}
	return promisify(func(ctx context.Context) (interface{}, error) {
		if err := worker.Activate(ctx); err != nil {
			return nil, err
		}
		return successResult("activated"), nil
	})
}

// handleFetch resolves one intercepted request.
// Args: [requestJSON string] - {method, url, body, navigate}
// Resolves to: JSON response {status, contentType, body}
func handleFetch(this js.Value, args []js.Value) interface{} {
	if worker == nil {
		return errorResult("not started")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: requestJSON")
	}
	var req mirror.Request
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult("invalid request json: " + err.Error())
	}

	return promisify(func(ctx context.Context) (interface{}, error) {
		resp := worker.HandleFetch(ctx, &req)
		bytes, err := json.Marshal(resp)
		if err != nil {
			return nil, err
		}
		return string(bytes), nil
	})
}

// handleMessage dispatches one protocol message.
// Args: [messageJSON string, postCallback func(messageJSON)] - callback
// receives progress and completion replies.
func handleMessage(this js.Value, args []js.Value) interface{} {
	if worker == nil {
		return errorResult("not started")
	}
	if len(args) < 1 {
		return errorResult("requires 1+ args: messageJSON, [postCallback]")
	}
	var msg mirror.Message
	if err := json.Unmarshal([]byte(args[0].String()), &msg); err != nil {
		return errorResult("invalid message json: " + err.Error())
	}
	var callback js.Value
	if len(args) > 1 && args[1].Type() == js.TypeFunction {
		callback = args[1]
	}

	post := func(reply mirror.Message) {
		bytes, err := json.Marshal(reply)
		if err != nil {
			return
		}
		if !callback.IsUndefined() {
			callback.Invoke(string(bytes))
		}
	}

	return promisify(func(ctx context.Context) (interface{}, error) {
		if err := worker.HandleMessage(ctx, msg, post, skipWaiting); err != nil {
			return nil, err
		}
		return successResult("handled " + msg.Type), nil
	})
}

// syncPending replays queued offline writes. Resolves to the number of
// items delivered.
func syncPending(this js.Value, args []js.Value) interface{} {
	if worker == nil {
		return errorResult("not started")
	}
	return promisify(func(ctx context.Context) (interface{}, error) {
		n, err := worker.SyncPending(ctx)
		if err != nil {
			return nil, err
		}
		return n, nil
	})
}

// skipWaiting forwards to the worker global of the same name.
func skipWaiting() {
	fn := js.Global().Get("skipWaiting")
	if fn.Type() == js.TypeFunction {
		fn.Invoke()
	}
}

// promisify runs fn on a goroutine and exposes it as a JS Promise.
func promisify(fn func(ctx context.Context) (interface{}, error)) interface{} {
	executor := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			result, err := fn(context.Background())
			if err != nil {
				reject.Invoke(errorResult(err.Error()))
				return
			}
			resolve.Invoke(result)
		}()
		return nil
	})
	promise := js.Global().Get("Promise").New(executor)
	executor.Release()
	return promise
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
