package duo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

// fakeDoer replays canned responses in order and records every request.
type fakeDoer struct {
	responses []*http.Response
	errs      []error
	requests  []*http.Request
	bodies    []string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)

	i := len(f.requests) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		panic("fakeDoer: no response queued")
	}
	return f.responses[i], nil
}

func response(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func okEnvelope(payload string) *http.Response {
	return response(200, `{"stat": "OK", "response": `+payload+`}`, nil)
}

func testClient(t *testing.T, doer *fakeDoer, maxRetries int) *Client {
	t.Helper()
	c := NewClient("DIABCDEFGHIJKLMNOPQR", "secretsecretsecretsecretsecretsecretsecr", "api-xxxxxxxx.duosecurity.com",
		600, maxRetries, 5*time.Second, WithDoer(doer), WithClock(func() time.Time { return signTime }))
	// No real sleeping in tests.
	c.limiter.sleep = func(time.Duration) {}
	c.retry.sleep = func(time.Duration) {}
	return c
}

func TestGetUserByUsernameFound(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{okEnvelope(`[
		{"user_id": "DU123", "username": "123456", "status": "active", "is_enrolled": true}
	]`)}}
	c := testClient(t, doer, 0)

	acct, err := c.GetUserByUsername(context.Background(), "123456")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if acct == nil || acct.UserID != "DU123" || acct.Username != "123456" {
		t.Fatalf("unexpected account %+v", acct)
	}
	if !acct.IsEnrolled {
		t.Error("IsEnrolled not decoded")
	}

	req := doer.requests[0]
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if got := req.URL.Query().Get("username"); got != "123456" {
		t.Errorf("username query = %q", got)
	}
	if req.URL.Path != "/admin/v1/users" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if req.Header.Get("Authorization") == "" {
		t.Error("request not signed")
	}
}

func TestGetUserByUsernameAbsent(t *testing.T) {
	// An empty result list and a 404 both mean "not in Duo", not failure.
	doer := &fakeDoer{responses: []*http.Response{
		okEnvelope(`[]`),
		response(404, `{"stat": "FAIL", "code": 40401, "message": "Resource not found"}`, nil),
	}}
	c := testClient(t, doer, 0)

	for i := 0; i < 2; i++ {
		acct, err := c.GetUserByUsername(context.Background(), "999999")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if acct != nil {
			t.Fatalf("call %d: want nil account, got %+v", i, acct)
		}
	}
}

func TestStatNotOKIsAPIError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		response(200, `{"stat": "FAIL", "code": 40002, "message": "Invalid request parameters"}`, nil),
	}}
	c := testClient(t, doer, 0)

	_, err := c.ListUsers(context.Background(), 100, 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Code != 40002 || apiErr.Message != "Invalid request parameters" {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		response(401, `{"stat": "FAIL"}`, nil),
	}}
	c := testClient(t, doer, 3)

	_, err := c.ListUsers(context.Background(), 100, 0)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("want *AuthError, got %v", err)
	}
	if len(doer.requests) != 1 {
		t.Errorf("auth failure retried: %d requests", len(doer.requests))
	}
}

func TestRateLimitRetriedThenSucceeds(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Retry-After", "7")
	doer := &fakeDoer{responses: []*http.Response{
		response(429, ``, hdr),
		okEnvelope(`[]`),
	}}
	c := testClient(t, doer, 3)

	users, err := c.ListUsers(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("want empty page, got %d users", len(users))
	}
	if len(doer.requests) != 2 {
		t.Fatalf("want 2 requests, got %d", len(doer.requests))
	}
}

func TestRateLimitRetryAfterParsed(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Retry-After", "17")
	doer := &fakeDoer{responses: []*http.Response{response(429, ``, hdr)}}
	c := testClient(t, doer, 0)

	_, err := c.ListUsers(context.Background(), 100, 0)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("want *RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 17 {
		t.Errorf("RetryAfter = %d, want 17", rl.RetryAfter)
	}
}

func TestServerErrorRetriedToExhaustion(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		response(503, "Service Unavailable", nil),
		response(503, "Service Unavailable", nil),
		response(503, "Service Unavailable", nil),
	}}
	c := testClient(t, doer, 2)

	_, err := c.ListUsers(context.Background(), 100, 0)
	var srv *ServerError
	if !errors.As(err, &srv) {
		t.Fatalf("want *ServerError, got %v", err)
	}
	if len(doer.requests) != 3 {
		t.Errorf("want 3 attempts, got %d", len(doer.requests))
	}
}

func TestMalformedEnvelope(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{response(200, `not json`, nil)}}
	c := testClient(t, doer, 0)

	_, err := c.ListUsers(context.Background(), 100, 0)
	var mal *MalformedResponseError
	if !errors.As(err, &mal) {
		t.Fatalf("want *MalformedResponseError, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{okEnvelope(`""`)}}
	c := testClient(t, doer, 0)

	if err := c.DeleteUser(context.Background(), "DU123"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	req := doer.requests[0]
	if req.Method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", req.Method)
	}
	if req.URL.Path != "/admin/v1/users/DU123" {
		t.Errorf("path = %q", req.URL.Path)
	}
}

func TestUpdateUserStatus(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{okEnvelope(`{"user_id": "DU123", "status": "disabled"}`)}}
	c := testClient(t, doer, 0)

	if err := c.UpdateUserStatus(context.Background(), "DU123", "disabled"); err != nil {
		t.Fatalf("UpdateUserStatus: %v", err)
	}

	req := doer.requests[0]
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	// POST parameters travel in the body, not the query string.
	if req.URL.RawQuery != "" {
		t.Errorf("POST carried query params: %q", req.URL.RawQuery)
	}
	want := url.Values{"status": {"disabled"}}.Encode()
	if doer.bodies[0] != want {
		t.Errorf("body = %q, want %q", doer.bodies[0], want)
	}
}

func TestUpdateUserStatusRejectsInvalid(t *testing.T) {
	doer := &fakeDoer{}
	c := testClient(t, doer, 0)

	err := c.UpdateUserStatus(context.Background(), "DU123", "suspended")
	if err == nil {
		t.Fatal("invalid status accepted")
	}
	if len(doer.requests) != 0 {
		t.Error("invalid status still reached the API")
	}
}

func TestListUsersPaging(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{okEnvelope(`[
		{"user_id": "DU1", "username": "111111"},
		{"user_id": "DU2", "username": "222222"}
	]`)}}
	c := testClient(t, doer, 0)

	users, err := c.ListUsers(context.Background(), 100, 200)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("want 2 users, got %d", len(users))
	}

	q := doer.requests[0].URL.Query()
	if q.Get("limit") != "100" || q.Get("offset") != "200" {
		t.Errorf("paging params = limit %q offset %q", q.Get("limit"), q.Get("offset"))
	}
}

func TestNetworkErrorRetried(t *testing.T) {
	doer := &fakeDoer{
		errs:      []error{&timeoutNetErr{}, nil},
		responses: []*http.Response{nil, okEnvelope(`[]`)},
	}
	c := testClient(t, doer, 2)

	if _, err := c.ListUsers(context.Background(), 100, 0); err != nil {
		t.Fatalf("ListUsers after transient failure: %v", err)
	}
	if len(doer.requests) != 2 {
		t.Errorf("want 2 attempts, got %d", len(doer.requests))
	}
}

type timeoutNetErr struct{}

func (*timeoutNetErr) Error() string   { return "dial tcp: i/o timeout" }
func (*timeoutNetErr) Timeout() bool   { return true }
func (*timeoutNetErr) Temporary() bool { return true }
