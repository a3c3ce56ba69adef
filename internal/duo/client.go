package duo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"duoclean/internal/model"
)

const apiPrefix = "/admin/v1"

// Doer is the slice of http.Client the Duo client needs; tests swap in a
// fake transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Duo Admin API v1. Every call passes through the
// rate limiter, then the retry policy, then the request signer.
type Client struct {
	ikey    string
	skey    string
	host    string
	baseURL string

	http    Doer
	limiter *RateLimiter
	retry   RetryPolicy

	now func() time.Time // test seam for signing
}

type Option func(*Client)

// WithDoer replaces the HTTP transport, for tests.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithClock fixes the signing clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(ikey, skey, host string, callsPerMinute, maxRetries int, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		ikey:    ikey,
		skey:    skey,
		host:    host,
		baseURL: "https://" + host,
		http:    &http.Client{Timeout: timeout},
		limiter: NewRateLimiter(callsPerMinute),
		retry:   DefaultRetryPolicy(maxRetries),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limiter exposes the client's rate limiter so an orchestrator can insert
// its own pacing between calls that bypass the client.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// envelope is Duo's response wrapper. A stat other than "OK" is an
// application-level error even when the HTTP status is 200.
type envelope struct {
	Stat     string          `json:"stat"`
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

// request issues one signed API call and decodes the response envelope.
// The rate limiter gates every attempt, including retries.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values) (json.RawMessage, error) {
	path := apiPrefix + endpoint

	var payload json.RawMessage
	err := c.retry.Do(ctx, func() error {
		c.limiter.Wait()

		var err error
		payload, err = c.do(ctx, method, path, params)
		return err
	})
	return payload, err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	_, headers := signRequest(method, path, c.host, c.ikey, c.skey, params, c.now())

	reqURL := c.baseURL + path
	var body io.Reader
	if signsParams(method) {
		if len(params) > 0 {
			reqURL += "?" + canonParams(params)
		}
	} else if len(params) > 0 {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		if k == "Host" {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := statusError(resp, raw); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedResponseError{Detail: "invalid JSON envelope", Err: err}
	}
	if env.Stat != "OK" {
		msg := env.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &APIError{Code: env.Code, Message: msg}
	}
	return env.Response, nil
}

// statusError maps HTTP status codes onto the error taxonomy.
func statusError(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{StatusCode: resp.StatusCode, Message: "check your API credentials"}
	case resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: "check API permissions"}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: "resource"}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 60
		if v := resp.Header.Get("Retry-After"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				retryAfter = n
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Body: truncate(body)}
	case resp.StatusCode >= 400:
		return &ClientError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	return nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// GetUserByUsername finds one account by username. A legitimate absence
// returns (nil, nil); hard failures return the underlying typed error.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*model.Account, error) {
	params := url.Values{"username": {username}}
	payload, err := c.request(ctx, http.MethodGet, "/users", params)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}

	var users []model.Account
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, &MalformedResponseError{Detail: "user list payload", Err: err}
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// ListUsers fetches one page of accounts. Pagination is caller-driven:
// call with increasing offset until an empty page comes back.
func (c *Client) ListUsers(ctx context.Context, limit, offset int) ([]model.Account, error) {
	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	payload, err := c.request(ctx, http.MethodGet, "/users", params)
	if err != nil {
		return nil, err
	}

	var users []model.Account
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, &MalformedResponseError{Detail: "user list payload", Err: err}
	}
	return users, nil
}

// DeleteUser removes an account by its Duo user ID.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.request(ctx, http.MethodDelete, "/users/"+userID, nil)
	if err != nil {
		log.Printf("Failed to delete user %s: %v", userID, err)
		return err
	}
	log.Printf("Successfully deleted user %s", userID)
	return nil
}

// UpdateUserStatus changes an account's enrollment status. The status is
// validated locally before any API call is made.
func (c *Client) UpdateUserStatus(ctx context.Context, userID, status string) error {
	if !model.ValidStatus(status) {
		return fmt.Errorf("duo: invalid status %q (want one of active, bypass, disabled, locked_out)", status)
	}
	params := url.Values{"status": {status}}
	_, err := c.request(ctx, http.MethodPost, "/users/"+userID, params)
	return err
}
