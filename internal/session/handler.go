package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/inkboard/internal/auth"
	"github.com/inamate/inkboard/internal/engine"
	"github.com/inamate/inkboard/internal/gateway"
)

// PlaygroundProjectID accepts anonymous sessions.
const PlaygroundProjectID = "proj_playground"

// Config holds what every new session needs.
type Config struct {
	Gateway        gateway.Gateway
	Auth           *auth.Service
	OriginPatterns []string
	Width          float64
	Height         float64
	GridPitch      float64
}

// Handler upgrades /ws/project/{projectId} requests into canvas sessions.
type Handler struct {
	manager *Manager
	cfg     Config
}

func NewHandler(m *Manager, cfg Config) *Handler {
	return &Handler{manager: m, cfg: cfg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var userID string
	if projectID == PlaygroundProjectID {
		userID = "anon-" + uuid.New().String()[:8]
	} else {
		token := auth.TokenFromRequest(r)
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		var err error
		userID, err = h.cfg.Auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	var client *Client
	eng := engine.New(engine.Options{
		ProjectID: projectID,
		Gateway:   h.cfg.Gateway,
		Notify:    func(n engine.Notification) { client.notify(n) },
		Logger:    slog.Default().With("client", clientID),
		GridPitch: h.cfg.GridPitch,
	})
	if h.cfg.Width > 0 && h.cfg.Height > 0 {
		eng.Mount(h.cfg.Width, h.cfg.Height)
	}
	client = newClient(h.manager, conn, eng, userID, projectID, clientID)

	if !h.manager.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	// Cancelling stops WritePump once ReadPump returns.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.WritePump(ctx)
	client.start(ctx)
	client.ReadPump(ctx)
}
