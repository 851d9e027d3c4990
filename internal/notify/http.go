package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ChangedPath is the endpoint an external preview UI exposes.
const ChangedPath = "/_ui/changed"

// HTTP posts every event to <origin>/_ui/changed?route=<route>.
type HTTP struct {
	origin string
	client *http.Client
}

// NewHTTP creates an HTTP notifier for origin. A nil client gets a short
// timeout so a missing preview UI never stalls a rebuild.
func NewHTTP(origin string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	return &HTTP{origin: strings.TrimRight(origin, "/"), client: client}
}

// Origin returns the preview origin.
func (h *HTTP) Origin() string {
	return h.origin
}

// URL returns the notification URL for route.
func (h *HTTP) URL(route string) string {
	return h.origin + ChangedPath + "?route=" + url.QueryEscape(route)
}

// Notify posts ev. Any non-2xx status is an error.
func (h *HTTP) Notify(ctx context.Context, ev Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL(ev.Route), nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify %s: %s", ev.Route, resp.Status)
	}
	return nil
}
