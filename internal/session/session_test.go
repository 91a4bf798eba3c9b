package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/inkboard/internal/auth"
	"github.com/inamate/inkboard/internal/engine"
	"github.com/inamate/inkboard/internal/gateway"
	"github.com/inamate/inkboard/internal/store"
)

type harness struct {
	srv     *httptest.Server
	manager *Manager
	store   *store.Memory
	auth    *auth.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		manager: NewManager(),
		store:   store.NewMemory(),
		auth:    auth.NewService("secret"),
	}
	go h.manager.Run()

	r := mux.NewRouter()
	r.Handle("/ws/project/{projectId}", NewHandler(h.manager, Config{
		Gateway: gateway.NewLocal(h.store),
		Auth:    h.auth,
		Width:   800,
		Height:  600,
	}))
	h.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		h.manager.Stop()
		h.srv.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, ctx context.Context, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Message{Type: msgType, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// readUntil returns the first message of the wanted type.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, want string) Message {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestSession_DrawAndSave(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := h.dial(t, ctx, "/ws/project/"+PlaygroundProjectID)

	var welcome WelcomePayload
	require.NoError(t, json.Unmarshal(readUntil(t, ctx, conn, TypeWelcome).Payload, &welcome))
	assert.Equal(t, PlaygroundProjectID, welcome.ProjectID)
	assert.NotEmpty(t, welcome.ClientID)
	readUntil(t, ctx, conn, TypeFrame)
	assert.Equal(t, 1, h.manager.Count())

	send(t, ctx, conn, TypeShapeRect, struct{}{})
	readUntil(t, ctx, conn, TypeFrame)
	send(t, ctx, conn, TypeAnnotationAdd, AnnotationPayload{Text: "Hi"})

	var frame FramePayload
	require.NoError(t, json.Unmarshal(readUntil(t, ctx, conn, TypeFrame).Payload, &frame))
	assert.Equal(t, 1, frame.Status.Shapes)
	assert.Equal(t, 1, frame.Status.Annotations)
	assert.True(t, frame.Status.Dirty)

	send(t, ctx, conn, TypeCanvasSave, SavePayload{Name: "Test"})
	var saved SavedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ctx, conn, TypeSaved).Payload, &saved))
	assert.Equal(t, "Test", saved.Name)

	var list ArtifactsPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ctx, conn, TypeArtifacts).Payload, &list))
	require.Len(t, list.Artifacts, 1)
	assert.Equal(t, 1, list.Artifacts[0].Shapes)
	assert.Equal(t, 1, list.Artifacts[0].Annotations)

	stored, err := h.store.ListArtifacts(ctx, PlaygroundProjectID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Test", stored[0].Name)
}

func TestSession_SaveWithoutNameNotifies(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := h.dial(t, ctx, "/ws/project/"+PlaygroundProjectID)
	readUntil(t, ctx, conn, TypeFrame)

	send(t, ctx, conn, TypeCanvasSave, SavePayload{Name: ""})
	var n struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(readUntil(t, ctx, conn, TypeNotify).Payload, &n))
	assert.Equal(t, "error", n.Level)
}

func TestSession_UnknownMessage(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := h.dial(t, ctx, "/ws/project/"+PlaygroundProjectID)
	readUntil(t, ctx, conn, TypeFrame)

	send(t, ctx, conn, "bogus", nil)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ctx, conn, TypeError).Payload, &e))
	assert.Equal(t, errUnknownType.Error(), e.Message)

	send(t, ctx, conn, TypeToolSet, ToolPayload{Tool: "lasso"})
	readUntil(t, ctx, conn, TypeError)
}

func TestSession_RequiresToken(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/project/proj_private"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)

	tok, err := h.auth.IssueToken("user_1")
	require.NoError(t, err)
	conn := h.dial(t, ctx, "/ws/project/proj_private?token="+tok)
	readUntil(t, ctx, conn, TypeWelcome)
}

func TestManager_Stop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := h.dial(t, ctx, "/ws/project/"+PlaygroundProjectID)
	readUntil(t, ctx, conn, TypeFrame)
	require.Equal(t, 1, h.manager.Count())

	stopped := make(chan struct{})
	go func() {
		h.manager.Stop()
		close(stopped)
	}()

	// Reading lets the client answer the close handshake.
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	<-stopped
	assert.Equal(t, 0, h.manager.Count())

	eng := engine.New(engine.Options{ProjectID: PlaygroundProjectID})
	assert.False(t, h.manager.Register(newClient(h.manager, nil, eng, "u", PlaygroundProjectID, "late")))
}

func TestManager_TrackAfterStop(t *testing.T) {
	m := NewManager()
	go m.Run()

	release := make(chan struct{})
	var ran []string
	var mu sync.Mutex
	record := func(name string) func() {
		return func() {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
		}
	}

	require.True(t, m.track(func() {
		<-release
		record("before")()
	}))

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	// Stop has to wait for the tracked work, so it cannot finish yet.
	select {
	case <-stopped:
		t.Fatal("Stop returned before background work finished")
	case <-time.After(50 * time.Millisecond):
	}

	assert.False(t, m.track(record("after")))

	close(release)
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"before"}, ran)
}
