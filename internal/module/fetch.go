package module

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
)

const maxFetchBody = 32 << 20

// fetcher backs the global fetch() of script modules. Requests complete
// before fetch returns, so the promise it hands back is already settled.
type fetcher struct {
	client *http.Client
}

func newFetcher(client *http.Client) *fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &fetcher{client: client}
}

func (f *fetcher) install(e *env) {
	_ = e.vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := e.vm.NewPromise()
		resp, err := f.do(e, call)
		if err != nil {
			reject(e.vm.NewTypeError("fetch failed: %s", err.Error()))
		} else {
			resolve(resp)
		}
		return e.vm.ToValue(promise)
	})
}

func (f *fetcher) do(e *env, call goja.FunctionCall) (goja.Value, error) {
	url := call.Argument(0).String()
	method := http.MethodGet
	var body io.Reader
	header := http.Header{}

	if init, ok := call.Argument(1).(*goja.Object); ok {
		if m := init.Get("method"); m != nil && !goja.IsUndefined(m) {
			method = strings.ToUpper(m.String())
		}
		if b := init.Get("body"); b != nil && !goja.IsUndefined(b) && !goja.IsNull(b) {
			body = strings.NewReader(b.String())
		}
		if h, ok := init.Get("headers").(*goja.Object); ok {
			for _, k := range h.Keys() {
				header.Set(k, h.Get(k).String())
			}
		}
	}

	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header = header

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return e.response(resp, string(data)), nil
}

func (e *env) response(resp *http.Response, text string) goja.Value {
	vm := e.vm
	obj := vm.NewObject()
	_ = obj.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	_ = obj.Set("status", resp.StatusCode)
	_ = obj.Set("statusText", http.StatusText(resp.StatusCode))
	_ = obj.Set("url", resp.Request.URL.String())

	headers := vm.NewObject()
	_ = headers.Set("get", func(call goja.FunctionCall) goja.Value {
		v := resp.Header.Get(call.Argument(0).String())
		if v == "" {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = obj.Set("headers", headers)

	_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
		promise, resolve, _ := vm.NewPromise()
		resolve(text)
		return vm.ToValue(promise)
	})
	_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()
		parse, _ := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
		v, err := parse(goja.Undefined(), vm.ToValue(text))
		if err != nil {
			if ex, ok := err.(*goja.Exception); ok {
				reject(ex.Value())
			} else {
				reject(vm.NewGoError(err))
			}
		} else {
			resolve(v)
		}
		return vm.ToValue(promise)
	})
	return obj
}
