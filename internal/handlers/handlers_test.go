package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dhruvsahu007/slackai/internal/api"
	"github.com/dhruvsahu007/slackai/internal/api/middleware"
	"github.com/dhruvsahu007/slackai/internal/store"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	router := api.NewRouter(zerolog.Nop(), s, nil, nil, nil, middleware.RateLimiterConfig{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv}
}

// do sends a JSON request and decodes the JSON response into out (if non-nil).
func (ts *testServer) do(t *testing.T, method, path, apiKey string, body, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type userResp struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

type channelResp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type messageResp struct {
	ID          string        `json:"id"`
	Content     string        `json:"content"`
	AuthorName  string        `json:"author_name"`
	ChannelID   string        `json:"channel_id"`
	RecipientID string        `json:"recipient_id"`
	ParentID    string        `json:"parent_message_id"`
	Replies     []messageResp `json:"replies"`
}

func (ts *testServer) registerUser(t *testing.T, name string) userResp {
	t.Helper()
	var u userResp
	if code := ts.do(t, "POST", "/users", "", map[string]string{"name": name}, &u); code != http.StatusCreated {
		t.Fatalf("register %s: status %d", name, code)
	}
	if u.APIKey == "" {
		t.Fatal("expected an api key")
	}
	return u
}

func (ts *testServer) createChannel(t *testing.T, name string) channelResp {
	t.Helper()
	var ch channelResp
	if code := ts.do(t, "POST", "/channels", "", map[string]string{"name": name}, &ch); code != http.StatusCreated {
		t.Fatalf("create channel %s: status %d", name, code)
	}
	return ch
}

func TestPostAndFetchChannelMessages(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerUser(t, "alice")
	general := ts.createChannel(t, "general")

	var root messageResp
	code := ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "hello team", "channel_id": general.ID}, &root)
	if code != http.StatusCreated {
		t.Fatalf("create message: status %d", code)
	}
	if root.AuthorName != "alice" || root.ChannelID != general.ID {
		t.Fatalf("unexpected message %+v", root)
	}

	code = ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "a reply", "channel_id": general.ID, "parent_message_id": root.ID}, nil)
	if code != http.StatusCreated {
		t.Fatalf("create reply: status %d", code)
	}

	var page struct {
		Messages []messageResp `json:"messages"`
		HasMore  bool          `json:"has_more"`
	}
	code = ts.do(t, "GET", fmt.Sprintf("/channels/%s/messages", general.ID), "", nil, &page)
	if code != http.StatusOK {
		t.Fatalf("history: status %d", code)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("replies must not appear top-level, got %d rows", len(page.Messages))
	}
	if len(page.Messages[0].Replies) != 1 || page.Messages[0].Replies[0].Content != "a reply" {
		t.Fatalf("expected nested reply, got %+v", page.Messages[0].Replies)
	}
	if page.HasMore {
		t.Fatal("has_more should be false")
	}
}

func TestCreateMessageRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	general := ts.createChannel(t, "general")

	code := ts.do(t, "POST", "/messages", "",
		map[string]string{"content": "hi", "channel_id": general.ID}, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	code = ts.do(t, "POST", "/messages", "bogus-key",
		map[string]string{"content": "hi", "channel_id": general.ID}, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", code)
	}
}

func TestCreateMessageErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerUser(t, "alice")
	bob := ts.registerUser(t, "bob")
	general := ts.createChannel(t, "general")

	// Both destinations set: validation error.
	code := ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "hi", "channel_id": general.ID, "recipient_id": bob.ID}, nil)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}

	// Empty content: validation error.
	code = ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "   ", "channel_id": general.ID}, nil)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}

	// Unknown channel: not found.
	code = ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "hi", "channel_id": "00000000-0000-0000-0000-000000000009"}, nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestThreadEndpoint(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerUser(t, "alice")
	general := ts.createChannel(t, "general")

	var root messageResp
	ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "root", "channel_id": general.ID}, &root)
	ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "first", "channel_id": general.ID, "parent_message_id": root.ID}, nil)
	ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "second", "channel_id": general.ID, "parent_message_id": root.ID}, nil)

	var thread struct {
		RootID  string        `json:"root_id"`
		Replies []messageResp `json:"replies"`
	}
	code := ts.do(t, "GET", fmt.Sprintf("/messages/%s/thread", root.ID), "", nil, &thread)
	if code != http.StatusOK {
		t.Fatalf("thread: status %d", code)
	}
	if len(thread.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(thread.Replies))
	}
	if thread.Replies[0].Content != "first" || thread.Replies[1].Content != "second" {
		t.Fatal("replies out of order")
	}
}

func TestDirectMessageEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerUser(t, "alice")
	bob := ts.registerUser(t, "bob")

	code := ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "hey bob", "recipient_id": bob.ID}, nil)
	if code != http.StatusCreated {
		t.Fatalf("create dm: status %d", code)
	}

	var conv struct {
		Messages []messageResp `json:"messages"`
	}
	code = ts.do(t, "GET", "/dm/"+bob.ID, alice.APIKey, nil, &conv)
	if code != http.StatusOK {
		t.Fatalf("dm history: status %d", code)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Content != "hey bob" {
		t.Fatalf("unexpected conversation %+v", conv.Messages)
	}

	// The same conversation from bob's side.
	code = ts.do(t, "GET", "/dm/"+alice.ID, bob.APIKey, nil, &conv)
	if code != http.StatusOK || len(conv.Messages) != 1 {
		t.Fatalf("dm from peer side: status %d, %d messages", code, len(conv.Messages))
	}

	// DM history requires auth.
	code = ts.do(t, "GET", "/dm/"+bob.ID, "", nil, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	// Unknown peer.
	code = ts.do(t, "GET", "/dm/00000000-0000-0000-0000-000000000009", alice.APIKey, nil, nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerUser(t, "alice")
	general := ts.createChannel(t, "general")
	random := ts.createChannel(t, "random")

	ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "deploy finished", "channel_id": general.ID}, nil)
	ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "deploy pending", "channel_id": random.ID}, nil)

	code := ts.do(t, "GET", "/find", "", nil, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("missing q should be 400, got %d", code)
	}

	var result struct {
		Results []messageResp `json:"results"`
		Total   int           `json:"total"`
	}
	code = ts.do(t, "GET", "/find?q=deploy", "", nil, &result)
	if code != http.StatusOK || result.Total != 2 {
		t.Fatalf("global search: status %d, total %d", code, result.Total)
	}

	code = ts.do(t, "GET", "/find?q=deploy&channel="+general.ID, "", nil, &result)
	if code != http.StatusOK || result.Total != 1 {
		t.Fatalf("scoped search: status %d, total %d", code, result.Total)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var health struct {
		Status string `json:"status"`
	}
	code := ts.do(t, "GET", "/health", "", nil, &health)
	if code != http.StatusOK || health.Status != "healthy" {
		t.Fatalf("health: status %d, %q", code, health.Status)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerUser(t, "alice")
	general := ts.createChannel(t, "general")
	ts.do(t, "POST", "/messages", alice.APIKey,
		map[string]string{"content": "hello", "channel_id": general.ID}, nil)

	var stats struct {
		TotalUsers    int64 `json:"total_users"`
		TotalMessages int64 `json:"total_messages"`
	}
	code := ts.do(t, "GET", "/stats", "", nil, &stats)
	if code != http.StatusOK {
		t.Fatalf("stats: status %d", code)
	}
	if stats.TotalUsers != 1 || stats.TotalMessages != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
