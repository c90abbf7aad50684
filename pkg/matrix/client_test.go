package matrix

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHomeserver records requests and serves canned responses.
type fakeHomeserver struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	handler  http.HandlerFunc
}

func (f *fakeHomeserver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()
	f.handler(w, r)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeHomeserver) {
	t.Helper()
	fake := &fakeHomeserver{handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL + "/", Logger: zerolog.Nop()})
	require.NoError(t, err)
	return client, fake
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestClient_Login(t *testing.T) {
	// Setup
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_matrix/client/v3/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"user_id":"@bot:example.org","access_token":"tok","device_id":"DEV"}`))
	})

	// Execute
	session, err := client.Login(context.Background(), "bot", "secret", "matrix-remote-closedown")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "@bot:example.org", session.UserID())
	assert.Equal(t, "DEV", session.DeviceID())

	var sent LoginRequest
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &sent))
	assert.Equal(t, "m.login.password", sent.Type)
	assert.Equal(t, "bot", sent.Identifier.User)
	assert.Equal(t, "secret", sent.Password)
	assert.Equal(t, "matrix-remote-closedown", sent.InitialDeviceDisplayName)
}

func TestClient_Login_Forbidden(t *testing.T) {
	// Setup
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"Invalid password"}`))
	})

	// Execute
	_, err := client.Login(context.Background(), "bot", "wrong", "")

	// Assert
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, "M_FORBIDDEN"))
	var matrixErr *Error
	require.ErrorAs(t, err, &matrixErr)
	assert.Equal(t, http.StatusForbidden, matrixErr.StatusCode)
}

func TestClient_ServerVersions(t *testing.T) {
	// Setup
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"versions":["r0.6.1","v1.1","v1.11"]}`))
	})

	// Execute
	versions, err := client.ServerVersions(context.Background())

	// Assert
	require.NoError(t, err)
	ok, err := versions.SupportsVersion("1.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = versions.SupportsVersion("1.12")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSupportsVersion_LegacyOnly(t *testing.T) {
	versions := &ServerVersionsResponse{Versions: []string{"r0.5.0", "r0.6.1"}}
	ok, err := versions.SupportsVersion("1.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_SendMessage(t *testing.T) {
	// Setup
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.URL.EscapedPath(), "/_matrix/client/v3/rooms/%21room:example.org/send/m.room.message/"), r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"event_id":"$evt"}`))
	})
	session := client.NewSession("@bot:example.org", "tok")

	// Execute
	eventID, err := session.SendMessage(context.Background(), "!room:example.org", NewMarkdownMessage("**MB7PMF**<br>PTT"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "$evt", eventID)

	var sent MessageContent
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &sent))
	assert.Equal(t, MsgTypeText, sent.MsgType)
	assert.Equal(t, "**MB7PMF**<br>PTT", sent.Body)
	assert.Equal(t, FormatHTML, sent.Format)
	assert.Equal(t, "<p><strong>MB7PMF</strong><br>PTT</p>", sent.FormattedBody)
}

func TestSession_SendMessage_UniqueTransactions(t *testing.T) {
	// Setup
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"event_id":"$evt"}`))
	})
	session := client.NewSession("@bot:example.org", "tok")

	// Execute
	for i := 0; i < 2; i++ {
		_, err := session.SendMessage(context.Background(), "!room:example.org", NewMarkdownMessage("hi"))
		require.NoError(t, err)
	}

	// Assert
	require.Len(t, fake.requests, 2)
	assert.NotEqual(t, fake.requests[0].URL.Path, fake.requests[1].URL.Path)
}

func TestSession_Sync(t *testing.T) {
	// Setup
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"next_batch": "s2",
			"rooms": {"join": {"!room:example.org": {"timeline": {"events": [
				{"type":"m.room.message","event_id":"$1","sender":"@op:example.org","content":{"msgtype":"m.text","body":"!mb7pmf power on"}},
				{"type":"m.room.message","event_id":"$2","sender":"@op:example.org","content":{"msgtype":"m.image","body":"cat.png"}},
				{"type":"m.reaction","event_id":"$3","sender":"@op:example.org","content":{}},
				{"type":"m.room.message","event_id":"$4","sender":"@user:example.org","content":{"msgtype":"m.text","body":"hello"}}
			]}}}}
		}`))
	})
	session := client.NewSession("@bot:example.org", "tok")

	// Execute
	response, err := session.Sync(context.Background(), SyncOptions{Since: "s1", Timeout: 30000, Filter: MessageFilter})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "s2", response.NextBatch)
	assert.Equal(t, []Message{
		{RoomID: "!room:example.org", EventID: "$1", Sender: "@op:example.org", Body: "!mb7pmf power on"},
		{RoomID: "!room:example.org", EventID: "$4", Sender: "@user:example.org", Body: "hello"},
	}, response.TextMessages())

	query := fake.requests[0].URL.Query()
	assert.Equal(t, "s1", query.Get("since"))
	assert.Equal(t, "30000", query.Get("timeout"))
	assert.Equal(t, MessageFilter, query.Get("filter"))
}

func TestSession_JoinRoom(t *testing.T) {
	// Setup
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"room_id":"!room:example.org"}`))
	})
	session := client.NewSession("@bot:example.org", "tok")

	// Execute
	roomID, err := session.JoinRoom(context.Background(), "!room:example.org")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "!room:example.org", roomID)
}

func TestSession_NotLoggedIn(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	session := client.NewSession("@bot:example.org", "")

	_, err := session.Sync(context.Background(), SyncOptions{})
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = session.SendMessage(context.Background(), "!room:example.org", NewMarkdownMessage("x"))
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("[link](https://example.org) for **station**")
	require.NoError(t, err)
	assert.Equal(t, `<p><a href="https://example.org">link</a> for <strong>station</strong></p>`, html)
}
