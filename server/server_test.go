package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/bus"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/emitter"
	"github.com/hupe1980/vaxmesh/flow"
	"github.com/hupe1980/vaxmesh/model"
	"github.com/hupe1980/vaxmesh/runner"
	"github.com/hupe1980/vaxmesh/session"
	"github.com/hupe1980/vaxmesh/tool"
)

type fakeChat struct {
	mu       sync.Mutex
	req      runner.ChatRequest
	auth     map[string]string
	ended    []string
	endedBy  []string
	err      error
	endErr   error
	fragment []string
}

func (f *fakeChat) ChatStream(_ context.Context, req runner.ChatRequest, auth map[string]string, onText func(string)) (emitter.ChatResponse, error) {
	f.mu.Lock()
	f.req = req
	f.auth = auth
	f.mu.Unlock()

	if f.err != nil {
		return emitter.ChatResponse{}, f.err
	}

	var msg strings.Builder

	for _, s := range f.fragment {
		if onText != nil {
			onText(s)
		}

		msg.WriteString(s)
	}

	return emitter.ChatResponse{
		AgentName: "orchestrator_agent",
		History:   core.NewConversationContext(core.NewUserMessage(req.Message), core.NewAssistantText("orchestrator_agent", msg.String())),
		Message:   msg.String(),
		UserInfo:  core.UserSessionContext{Date: "2024-06-29"},
		SessionID: req.SessionID,
	}, nil
}

func (f *fakeChat) EndSession(_ context.Context, id, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ended = append(f.ended, id)
	f.endedBy = append(f.endedBy, subject)

	return f.endErr
}

func newTestServer(t *testing.T, chat *fakeChat, verifier TokenVerifier) *httptest.Server {
	t.Helper()

	s := New(chat, Config{Verifier: verifier, Version: "test"})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func post(t *testing.T, ts *httptest.Server, body string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/chat", strings.NewReader(body))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decodeBody(resp *http.Response, target any) error {
	return json.NewDecoder(resp.Body).Decode(target)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	return s
}

// -------------------- Chat Tests --------------------

func TestChat_JSON(t *testing.T) {
	chat := &fakeChat{fragment: []string{"Hello", "\n"}}
	ts := newTestServer(t, chat, nil)

	resp := post(t, ts, `{"message":"hi","session_id":"s1"}`, map[string]string{"Authorization": "Bearer abc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var out emitter.ChatResponse
	require.NoError(t, decodeBody(resp, &out))

	assert.Equal(t, "orchestrator_agent", out.AgentName)
	assert.Equal(t, "Hello\n", out.Message)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, 2, out.History.Len())

	assert.Equal(t, "hi", chat.req.Message)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc", "Content-Type": "application/json"}, chat.auth)
}

func TestChat_BadRequests(t *testing.T) {
	ts := newTestServer(t, &fakeChat{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"message":`},
		{"unknown field", `{"message":"hi","extra":1}`},
		{"empty message", `{"message":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out map[string]string
			require.NoError(t, decodeBody(resp, &out))
			assert.NotEmpty(t, out["detail"])
		})
	}
}

func TestChat_RunnerError(t *testing.T) {
	ts := newTestServer(t, &fakeChat{err: errors.New("snapshot store down")}, nil)

	resp := post(t, ts, `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out map[string]string
	require.NoError(t, decodeBody(resp, &out))
	assert.Equal(t, "internal error", out["detail"])
}

func TestChat_Stream(t *testing.T) {
	chat := &fakeChat{fragment: []string{"one ", "two", "\n"}}
	ts := newTestServer(t, chat, nil)

	resp := post(t, ts, `{"message":"count"}`, map[string]string{"Accept": "text/event-stream"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, name)
		}
	}

	assert.Equal(t, []string{"delta", "delta", "delta", "response"}, events)
}

// -------------------- Session Tests --------------------

func TestEndSession(t *testing.T) {
	chat := &fakeChat{}
	ts := newTestServer(t, chat, nil)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/chat/sess-9", nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"sess-9"}, chat.ended)
	assert.Equal(t, []string{""}, chat.endedBy)
}

func del(t *testing.T, ts *httptest.Server, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+path, nil)
	require.NoError(t, err)

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func newRunnerServer(t *testing.T, m *model.ScriptedModel) (*httptest.Server, *session.InMemoryStore) {
	t.Helper()

	registry, err := agent.NewRegistry(tool.NewCatalog(), "orchestrator_agent", agent.Definition{
		Name:      "orchestrator_agent",
		Resumable: true,
	})
	require.NoError(t, err)

	c, err := flow.NewController(registry, func(o *flow.Options) { o.Model = m })
	require.NoError(t, err)

	b := bus.New()
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, c.Register(b))

	store := session.NewInMemoryStore()
	r := runner.New(b, registry, func(o *runner.Options) { o.Store = store })

	s := New(r, Config{Verifier: mustVerifier(t, "secret"), Version: "test"})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return ts, store
}

func TestSession_OwnedBySubject(t *testing.T) {
	m := model.NewScriptedModel(model.TextStep("Hello."))
	ts, store := newRunnerServer(t, m)

	alice := signToken(t, "secret", jwt.MapClaims{"sub": "user-a", "exp": time.Now().Add(time.Hour).Unix()})
	bob := signToken(t, "secret", jwt.MapClaims{"sub": "user-b", "exp": time.Now().Add(time.Hour).Unix()})

	resp := post(t, ts, `{"message":"hi","session_id":"shared"}`, map[string]string{"Authorization": "Bearer " + alice})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap, err := store.Load(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, "user-a", snap.Subject)

	resp = post(t, ts, `{"message":"show me","session_id":"shared"}`, map[string]string{"Authorization": "Bearer " + bob})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	var out map[string]string
	require.NoError(t, decodeBody(resp, &out))
	assert.Equal(t, "session belongs to another user", out["detail"])
	assert.Len(t, m.Requests(), 1)

	resp = post(t, ts, `{"message":"show me","session_id":"shared"}`, map[string]string{"Authorization": "Bearer " + bob, "Accept": "text/event-stream"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "event: error")
	assert.Contains(t, string(body), "session belongs to another user")
	assert.NotContains(t, string(body), "Hello.")

	resp = del(t, ts, "/chat/shared", bob)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = store.Load(context.Background(), "shared")
	require.NoError(t, err)

	resp = del(t, ts, "/chat/shared", alice)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = store.Load(context.Background(), "shared")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeChat{}, mustVerifier(t, "secret"))

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "health needs no token")
}

// -------------------- Auth Tests --------------------

func mustVerifier(t *testing.T, secret string) *JWTVerifier {
	t.Helper()

	v, err := NewJWTVerifier([]byte(secret), "")
	require.NoError(t, err)

	return v
}

func TestAuth_Verifier(t *testing.T) {
	chat := &fakeChat{fragment: []string{"ok"}}
	ts := newTestServer(t, chat, mustVerifier(t, "secret"))

	valid := signToken(t, "secret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, "secret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	forged := signToken(t, "other", jwt.MapClaims{"sub": "user-1"})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"bad signature", "Bearer " + forged, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}

			resp := post(t, ts, `{"message":"hi"}`, headers)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	assert.Equal(t, "user-1", chat.req.Subject, "verified subject reaches the runner")
}

func TestJWTVerifier(t *testing.T) {
	v := mustVerifier(t, "secret")

	sub, err := v.Verify(signToken(t, "secret", jwt.MapClaims{"user_id": "42"}))
	require.NoError(t, err)
	assert.Equal(t, "42", sub)

	_, err = v.Verify(signToken(t, "secret", jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix(), "sub": "x"}))
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = v.Verify(signToken(t, "secret", jwt.MapClaims{"name": "nobody"}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTVerifier(nil, "")
	assert.Error(t, err)

	_, err = NewJWTVerifier([]byte("secret"), "RS256")
	assert.Error(t, err)
}
