// Package testclient drives a handler through a real HTTP round trip from
// ordinary blocking test code.
//
// A Client serves the handler on an ephemeral loopback port and issues one
// request at a time against it:
//
//	c, err := testclient.New(handler)
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.Get("/")
//	// resp.StatusCode == 200, resp.Body == "Hello World"
//
// Cookies persist across requests, so sessions behave as in a browser.
package testclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds each request unless overridden.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout matches every TimeoutError.
	ErrTimeout = errors.New("testclient: request timed out")
	// ErrRequestInFlight is returned when a request is issued while
	// another one on the same client has not finished.
	ErrRequestInFlight = errors.New("testclient: another request is in flight")
	// ErrClosed is returned by requests on a closed client.
	ErrClosed = errors.New("testclient: client is closed")
)

// TimeoutError reports a request that did not complete in time.
type TimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("testclient: %s %s timed out after %s", e.Method, e.URL, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Response is a completed request with its body read as text.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	// EffectiveURL is the URL of the final request after redirects.
	EffectiveURL string
	Cookies      []*http.Cookie
}

// Client states.
const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Client is a synchronous HTTP client bound to one served handler.
// Methods may be called from any goroutine, but only one request may be
// in flight at a time.
type Client struct {
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	http     *http.Client
	baseURL  string
	timeout  time.Duration
	logger   zerolog.Logger
	redirect bool

	state     atomic.Int32
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	serveDone chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger for requests and server errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithFollowRedirects controls whether redirects are followed (default true).
func WithFollowRedirects(follow bool) Option {
	return func(c *Client) {
		c.redirect = follow
	}
}

// New starts serving h on a loopback port. Close releases the port.
func New(h http.Handler, opts ...Option) (*Client, error) {
	c := &Client{
		handler:   h,
		timeout:   DefaultTimeout,
		logger:    zerolog.Nop(),
		redirect:  true,
		serveDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind loopback port: %w", err)
	}
	c.listener = ln
	c.baseURL = fmt.Sprintf("http://localhost:%d", ln.Addr().(*net.TCPAddr).Port)

	jar, err := cookiejar.New(nil)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c.http = &http.Client{
		Jar:       jar,
		Transport: &http.Transport{Proxy: nil, DisableCompression: true},
	}
	if !c.redirect {
		c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	c.server = &http.Server{
		Handler:  h,
		ErrorLog: log.New(c.logger, "", 0),
	}
	go func() {
		defer close(c.serveDone)
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error().Err(err).Msg("test server stopped")
		}
	}()

	return c, nil
}

// BaseURL returns http://localhost:<port>.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL returns the absolute URL for path on the test server.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Jar returns the cookie jar shared by all requests.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// RequestOption configures one request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	header  http.Header
	body    io.Reader
	timeout time.Duration
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Add(key, value)
	}
}

// WithBody sets the request body.
func WithBody(body io.Reader) RequestOption {
	return func(rc *requestConfig) {
		rc.body = body
	}
}

// WithForm sends values as an urlencoded form body.
func WithForm(values url.Values) RequestOption {
	return func(rc *requestConfig) {
		rc.body = strings.NewReader(values.Encode())
		rc.header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
}

// WithRequestTimeout overrides the client timeout for one request.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) {
		rc.timeout = d
	}
}

type result struct {
	resp *Response
	err  error
}

// Request performs one request and blocks until it completes, fails or
// times out. target may be a path on the test server or an absolute URL.
// Transport failures are returned unchanged; a timeout returns a
// *TimeoutError and leaves the client ready for the next request.
func (c *Client) Request(method, target string, opts ...RequestOption) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.state.CompareAndSwap(stateIdle, stateRunning) {
		return nil, ErrRequestInFlight
	}
	defer c.state.Store(stateIdle)

	rc := requestConfig{header: make(http.Header), timeout: c.timeout}
	for _, opt := range opts {
		opt(&rc)
	}

	if !strings.Contains(target, "//") {
		target = c.URL(target)
	}
	target = SmartQuote(target)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, rc.body)
	if err != nil {
		c.state.Store(stateStopped)
		return nil, err
	}
	for k, vs := range rc.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	done := make(chan result, 1)
	go func() {
		resp, err := c.do(req)
		done <- result{resp: resp, err: err}
	}()

	var timer <-chan time.Time
	if rc.timeout > 0 {
		t := time.NewTimer(rc.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case res := <-done:
		c.state.Store(stateStopped)
		if res.err != nil {
			c.logger.Debug().Err(res.err).Str("method", method).Str("url", target).Msg("test request failed")
			return nil, res.err
		}
		c.logger.Debug().
			Str("method", method).
			Str("url", target).
			Int("status", res.resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("test request")
		return res.resp, nil

	case <-timer:
		// The late completion lands in the buffered channel and is dropped.
		cancel()
		c.state.Store(stateStopped)
		return nil, &TimeoutError{Method: method, URL: target, Timeout: rc.timeout}
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode:   resp.StatusCode,
		Header:       resp.Header,
		Body:         string(body),
		EffectiveURL: resp.Request.URL.String(),
		Cookies:      resp.Cookies(),
	}, nil
}

// Get issues a GET request.
func (c *Client) Get(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodGet, target, opts...)
}

// Head issues a HEAD request.
func (c *Client) Head(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodHead, target, opts...)
}

// Post issues a POST request.
func (c *Client) Post(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodPost, target, opts...)
}

// Put issues a PUT request.
func (c *Client) Put(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodPut, target, opts...)
}

// Patch issues a PATCH request.
func (c *Client) Patch(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodPatch, target, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodDelete, target, opts...)
}

// Options issues an OPTIONS request.
func (c *Client) Options(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodOptions, target, opts...)
}

// Trace issues a TRACE request.
func (c *Client) Trace(target string, opts ...RequestOption) (*Response, error) {
	return c.Request(http.MethodTrace, target, opts...)
}

// Close stops the server, waits for it to exit, and closes the handler if
// it is an io.Closer. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		err := c.server.Close()
		c.http.CloseIdleConnections()
		<-c.serveDone

		if closer, ok := c.handler.(io.Closer); ok {
			err = errors.Join(err, closer.Close())
		}
		c.closeErr = err
	})
	return c.closeErr
}
