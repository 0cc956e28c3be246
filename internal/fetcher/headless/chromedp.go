// Package headless renders pages in headless Chrome behind an http.RoundTripper,
// so collectors can crawl JavaScript-built pages without changing their callbacks.
package headless

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Config controls the behavior of the headless transport.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// rendered is the outcome of a single browser navigation.
type rendered struct {
	html    string
	url     string
	status  int
	headers http.Header
}

type renderFunc func(ctx context.Context, req *http.Request) (rendered, error)

// Transport renders GET requests with chromedp and forwards everything else to base.
type Transport struct {
	cfg         Config
	base        http.RoundTripper
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	render      renderFunc
}

// NewTransport creates a chromedp-backed transport. A nil base uses http.DefaultTransport.
func NewTransport(cfg Config, base http.RoundTripper) (*Transport, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if base == nil {
		base = http.DefaultTransport
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	t := &Transport{
		cfg:         cfg,
		base:        base,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
	t.render = t.renderChromedp
	return t, nil
}

// Close shuts down the browser allocator.
func (t *Transport) Close() {
	t.allocCancel()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !renderable(req) {
		return t.base.RoundTrip(req)
	}
	if err := t.acquire(req.Context()); err != nil {
		return nil, err
	}
	defer t.release()

	page, err := t.render(req.Context(), req)
	if err != nil {
		return nil, err
	}
	return page.response(req), nil
}

// renderable reports whether req is a document navigation the browser should handle.
func renderable(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	return !strings.EqualFold(req.URL.Path, "/robots.txt")
}

func (t *Transport) renderChromedp(ctx context.Context, req *http.Request) (rendered, error) {
	taskCtx, taskCancel := chromedp.NewContext(t.allocator)
	defer taskCancel()

	// Stop the browser task when the caller gives up.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, t.cfg.NavigationTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var html, finalURL string
	actions := []chromedp.Action{
		t.networkSetupAction(req.Header),
		chromedp.Navigate(req.URL.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return rendered{}, fmt.Errorf("chromedp run %s: %w", req.URL, err)
	}

	status, headers, location := meta.snapshotWithFallbacks(req.URL.String(), finalURL)
	return rendered{html: html, url: location, status: status, headers: headers}, nil
}

func (t *Transport) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		ua := t.cfg.UserAgent
		if v := headers.Get("User-Agent"); v != "" {
			ua = v
		}
		if ua != "" {
			if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		extra := cloneHeader(headers)
		extra.Del("User-Agent")
		if len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(extra)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (t *Transport) acquire(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	select {
	case t.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (t *Transport) release() {
	if t.limiter == nil {
		return
	}
	select {
	case <-t.limiter:
	default:
	}
}

// response turns the rendered DOM into an HTML response for req.
func (p rendered) response(req *http.Request) *http.Response {
	headers := cloneHeader(p.headers)
	if headers == nil {
		headers = http.Header{}
	}
	// The body is the serialized DOM, so transfer headers from the original response no longer apply.
	headers.Del("Content-Encoding")
	headers.Set("Content-Type", "text/html; charset=utf-8")
	headers.Set("Content-Length", strconv.Itoa(len(p.html)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", p.status, http.StatusText(p.status)),
		StatusCode:    p.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(strings.NewReader(p.html)),
		ContentLength: int64(len(p.html)),
		Request:       p.finalRequest(req),
	}
}

// finalRequest points the response at the URL the browser ended on, the way
// http.Client reports a followed redirect.
func (p rendered) finalRequest(req *http.Request) *http.Request {
	if p.url == "" || p.url == req.URL.String() {
		return req
	}
	u, err := url.Parse(p.url)
	if err != nil {
		return req
	}
	final := req.Clone(req.Context())
	final.URL = u
	final.Host = u.Host
	return final
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	// Only the first document response is the page itself; later ones are frames.
	if m.status == 0 {
		m.status = int(event.Response.Status)
		m.headers = headers
		m.url = event.Response.URL
	}
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, location := m.status, cloneHeader(m.headers), m.url
	m.mu.RUnlock()

	switch {
	case location != "":
	case finalURL != "":
		location = finalURL
	default:
		location = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, location
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = strings.Join(values, ", ")
		}
	}
	return headers
}
