package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the hosted appointment API.
const DefaultBaseURL = "https://appointment-manager-node.onrender.com/api/v1"

// TokenSource yields the bearer token for the current session, or "" when
// no one is logged in.
type TokenSource interface {
	Token() string
}

// Options configures a Client. Zero values pick sensible defaults.
type Options struct {
	BaseURL  string
	HTTP     *http.Client
	Timeout  time.Duration
	Tokens   TokenSource
	CacheTTL time.Duration
	Logger   *log.Logger
	Metrics  *Metrics
	Now      func() time.Time
}

// Client calls the appointment API. The resource fields share one transport,
// one query cache and one token source.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	Auth         *AuthResource
	Doctors      *DoctorResource
	Appointments *AppointmentResource

	tokens  TokenSource
	cache   *queryCache
	flight  singleflight.Group
	log     requestLogger
	metrics *Metrics
}

// New creates a client with configurable timeout.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		BaseURL: baseURL,
		HTTP:    httpClient,
		tokens:  opts.Tokens,
		cache:   newQueryCache(opts.CacheTTL, 0, opts.Now),
		log:     requestLogger{opts.Logger},
		metrics: opts.Metrics,
	}
	c.Auth = &AuthResource{c: c}
	c.Doctors = &DoctorResource{c: c}
	c.Appointments = &AppointmentResource{c: c}
	return c
}

// Invalidate drops cached results for the given tags so the next query refetches.
func (c *Client) Invalidate(tags ...Tag) {
	c.cache.invalidate(tags...)
}

// call describes one HTTP exchange.
type call struct {
	resource string
	method   string
	path     string
	query    url.Values
	body     any
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// query runs a GET through the cache. Identical concurrent queries share one request.
func (c *Client) query(ctx context.Context, tag Tag, req call) ([]byte, error) {
	key := cacheKey(req.method, req.path, req.query, c.token())
	if body, ok := c.cache.get(key); ok {
		c.metrics.observeCache(tag, true)
		c.log.cacheHit(req.resource, key)
		return body, nil
	}
	c.metrics.observeCache(tag, false)

	gen := c.cache.generation(tag)
	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own ctx ends. The HTTP client timeout bounds the fetch.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		if body, ok := c.cache.get(key); ok {
			return body, nil
		}
		body, err := c.send(shared, req)
		if err != nil {
			return nil, err
		}
		c.cache.store(tag, gen, key, body)
		return body, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s request failed: %w", req.resource, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneBytes(res.Val.([]byte)), nil
	}
}

// mutate sends a write and invalidates the given tags on success.
func (c *Client) mutate(ctx context.Context, req call, invalidates ...Tag) ([]byte, error) {
	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.invalidate(invalidates...)
	return body, nil
}

// send performs the request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, r call) ([]byte, error) {
	endpoint := c.BaseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", r.resource, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.request(r.resource, r.method, r.path, flatten(r.query))
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.metrics.observeRequest(r.resource, r.method, 0, time.Since(start))
		c.log.failure(r.resource, r.method+" "+r.path, err)
		return nil, fmt.Errorf("%s request failed: %w", r.resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	took := time.Since(start)
	c.metrics.observeRequest(r.resource, r.method, resp.StatusCode, took)
	c.log.response(r.resource, resp.StatusCode, took)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", r.resource, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    messageOf(body),
			Method:     r.method,
			Path:       r.path,
		}
		c.log.failure(r.resource, r.method+" "+r.path, apiErr)
		return nil, apiErr
	}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Success != nil && !*env.Success {
		code := env.StatusCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{StatusCode: code, Message: env.Message, Method: r.method, Path: r.path}
	}
	return body, nil
}

// envelope is the common part of every response body.
type envelope struct {
	Success    *bool  `json:"success,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

func messageOf(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

func decode[T any](resource string, body []byte) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%s: decode response: %w: %w", resource, ErrInvalidResponse, err)
	}
	return out, nil
}

func flatten(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k := range q {
		out[k] = q.Get(k)
	}
	return out
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
