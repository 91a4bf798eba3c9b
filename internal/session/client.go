package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inamate/inkboard/internal/engine"
	"github.com/inamate/inkboard/internal/tool"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
)

// Client is one browser connection driving its own canvas engine.
type Client struct {
	manager *Manager
	conn    *websocket.Conn
	engine  *engine.Engine
	log     *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	UserID    string
	ProjectID string
	ClientID  string
}

func newClient(m *Manager, conn *websocket.Conn, eng *engine.Engine, userID, projectID, clientID string) *Client {
	return &Client{
		manager:   m,
		conn:      conn,
		engine:    eng,
		log:       slog.Default().With("client", clientID, "user", userID, "project", projectID),
		send:      make(chan []byte, 256),
		UserID:    userID,
		ProjectID: projectID,
		ClientID:  clientID,
	}
}

// ReadPump decodes incoming messages until the connection ends.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.manager.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			c.log.Debug("read error", "error", err)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			c.sendError("invalid message")
			continue
		}

		c.handle(ctx, &msg)
	}
}

// WritePump drains the send queue and keeps the connection alive.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues a message. Messages to a closed or saturated client are
// dropped.
func (c *Client) Send(msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal payload", "type", msgType, "error", err)
		return
	}
	data, err := json.Marshal(Message{Type: msgType, Payload: raw})
	if err != nil {
		c.log.Error("marshal message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("client send buffer full, dropping message", "type", msgType)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendError(message string) {
	c.Send(TypeError, ErrorPayload{Message: message})
}

func (c *Client) sendFrame() {
	c.Send(TypeFrame, FramePayload{
		Commands: c.engine.Frame(),
		Status:   c.engine.Status(),
	})
}

func (c *Client) sendArtifacts() {
	c.Send(TypeArtifacts, ArtifactsPayload{Artifacts: summarize(c.engine.SavedArtifacts())})
}

func (c *Client) notify(n engine.Notification) {
	c.Send(TypeNotify, n)
}

// start sends the greeting and the initial state.
func (c *Client) start(ctx context.Context) {
	c.Send(TypeWelcome, WelcomePayload{ClientID: c.ClientID, ProjectID: c.ProjectID})
	if _, err := c.engine.Refresh(ctx); err == nil {
		c.sendArtifacts()
	}
	c.sendFrame()
}

func decode[T any](msg *Message) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, nil
	}
	err := json.Unmarshal(msg.Payload, &v)
	return v, err
}

func (c *Client) handle(ctx context.Context, msg *Message) {
	if err := c.dispatch(ctx, msg); err != nil {
		c.log.Debug("message failed", "type", msg.Type, "error", err)
		c.sendError(err.Error())
	}
}

var errUnknownType = errors.New("unknown message type")

func (c *Client) dispatch(ctx context.Context, msg *Message) error {
	e := c.engine

	switch msg.Type {
	case TypePointerDown, TypePointerMove, TypePointerUp:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return err
		}
		switch msg.Type {
		case TypePointerDown:
			e.PointerDown(p.X, p.Y)
		case TypePointerMove:
			e.PointerMove(p.X, p.Y)
		default:
			e.PointerUp(p.X, p.Y)
		}

	case TypePointerLeave:
		e.PointerLeave()

	case TypeToolSet:
		p, err := decode[ToolPayload](msg)
		if err != nil {
			return err
		}
		t, err := tool.ParseTool(p.Tool)
		if err != nil {
			return err
		}
		e.SetTool(t)

	case TypeViewZoom:
		p, err := decode[ZoomPayload](msg)
		if err != nil {
			return err
		}
		e.Zoom(p.X, p.Y, p.Delta)

	case TypeViewPan:
		p, err := decode[PanPayload](msg)
		if err != nil {
			return err
		}
		e.Pan(p.DX, p.DY)

	case TypeGridSet:
		p, err := decode[GridPayload](msg)
		if err != nil {
			return err
		}
		e.SetGrid(p.Show)

	case TypeShapeRect:
		e.AddRectangle()

	case TypeAnnotationAdd:
		p, err := decode[AnnotationPayload](msg)
		if err != nil {
			return err
		}
		e.AddAnnotation(p.Text)

	case TypeElementSelect:
		p, err := decode[IDPayload](msg)
		if err != nil {
			return err
		}
		if err := e.Select(p.ID); err != nil {
			return err
		}

	case TypeElementDelete:
		p, err := decode[IDPayload](msg)
		if err != nil {
			return err
		}
		if p.ID == "" {
			e.DeleteSelected()
		} else {
			e.Delete(p.ID)
		}

	case TypeSurfaceMount:
		p, err := decode[MountPayload](msg)
		if err != nil {
			return err
		}
		e.Mount(p.Width, p.Height)

	case TypeCanvasSave:
		p, err := decode[SavePayload](msg)
		if err != nil {
			return err
		}
		return c.save(ctx, p)

	case TypeCanvasLoad:
		p, err := decode[IDPayload](msg)
		if err != nil {
			return err
		}
		if err := e.Load(p.ID); err != nil {
			return err
		}

	case TypeCanvasRefresh:
		if _, err := e.Refresh(ctx); err != nil {
			return nil // already surfaced as a notification
		}
		c.sendArtifacts()
		return nil

	case TypeArtifactDelete:
		p, err := decode[IDPayload](msg)
		if err != nil {
			return err
		}
		if err := e.DeleteArtifact(ctx, p.ID); err != nil {
			return nil
		}
		c.sendArtifacts()
		return nil

	default:
		return errUnknownType
	}

	c.sendFrame()
	return nil
}

// save starts a background save and reports its outcome when it lands.
// Validation and render failures are surfaced by the engine's notifier.
func (c *Client) save(ctx context.Context, p SavePayload) error {
	pending, err := c.engine.Save(ctx, p.Name, p.Description)
	if err != nil {
		return nil
	}

	// The engine still finishes the save if the manager is stopping;
	// only the report is skipped.
	c.manager.track(func() {
		saved, err := pending.Wait(context.Background())
		if err != nil {
			return
		}
		c.Send(TypeSaved, SavedPayload{ID: saved.ID, Name: saved.Name})
		c.sendArtifacts()
		c.sendFrame()
	})
	return nil
}
