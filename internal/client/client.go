package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"topomerge/internal/gate"
	"topomerge/internal/progress"
)

// DefaultEstimate drives the progress signal when a request sets none
const DefaultEstimate = 5 * time.Second

// APIError is a non-2xx answer from the backend
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s /%s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s /%s: %d %s", e.Method, e.Path, e.Status, e.Detail)
}

// Session is the authenticated state threaded through every call
type Session struct {
	Token         string
	DomainID      string
	DeviceID      string
	HNSTopologyID string
}

// Request describes one backend call. When Task is set the call is held
// until the backend reports that task ready.
type Request struct {
	Method   string
	Path     string
	Params   url.Values
	Body     any        // sent as JSON
	Form     url.Values // sent form encoded, takes precedence over Body
	Task     string
	Estimate time.Duration
}

// Client talks to the merge backend
type Client struct {
	baseURL  string
	http     *http.Client
	dialer   gate.Dialer
	sink     progress.Sink
	estimate time.Duration

	mu      sync.Mutex
	session Session
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the transport used for API calls and the readiness channel
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the readiness channel dialer
func WithDialer(d gate.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithProgress routes progress values of every call to sink
func WithProgress(sink progress.Sink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithEstimate sets the default duration estimate for progress
func WithEstimate(d time.Duration) Option {
	return func(c *Client) { c.estimate = d }
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		estimate: DefaultEstimate,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &gate.SSEDialer{BaseURL: c.baseURL, Client: c.http}
	}
	return c
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns a copy of the current session
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession replaces the session, e.g. to resume with a known token
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) update(fn func(*Session)) {
	c.mu.Lock()
	fn(&c.session)
	c.mu.Unlock()
}

// Call performs req and decodes the JSON answer into out when out is not
// nil. A gated request only goes out after the readiness event; progress
// runs for the duration of the HTTP exchange and is forced to 100 when it
// ends. Each gated call waits on its own channel, so concurrent calls do
// not supersede one another.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	s := c.Session()
	if req.Task == "" {
		return c.send(ctx, s, req, out)
	}

	var callErr error
	err := gate.New(c.dialer).Run(ctx, req.Task, s.Token, func() {
		callErr = c.send(ctx, s, req, out)
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", req.Task, err)
	}
	return callErr
}

func (c *Client) send(ctx context.Context, s Session, req Request, out any) error {
	estimate := req.Estimate
	if estimate <= 0 {
		estimate = c.estimate
	}
	est := progress.New(estimate, c.sink)
	est.Start(ctx)
	defer est.Stop()

	httpReq, err := c.newRequest(ctx, s, req)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s /%s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s /%s: read response: %w", req.Method, req.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Detail: detail(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s /%s: decode response: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, s Session, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	params := url.Values{}
	for k, v := range req.Params {
		params[k] = v
	}
	if s.DomainID != "" && params.Get("domain_id") == "" {
		params.Set("domain_id", s.DomainID)
	}
	if s.DeviceID != "" && params.Get("device_id") == "" {
		params.Set("device_id", s.DeviceID)
	}
	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", req.Path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if s.Token != "" {
		httpReq.Header.Set("Authorization", "bearer "+s.Token)
	}
	return httpReq, nil
}

// detail extracts the backend's {"detail": ...} message
func detail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Detail == nil {
		return strings.TrimSpace(string(body))
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	data, _ := json.Marshal(payload.Detail)
	return string(data)
}
