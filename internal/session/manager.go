package session

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Manager tracks live sessions. Registration goes through a single loop
// so connect and disconnect are processed in order.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Client // clientID -> client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// trackMu orders background.Add against Stop's Wait.
	trackMu    sync.Mutex
	stopping   bool
	background sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		sessions:   make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until Stop is called.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.add(c)
		case c := <-m.unregister:
			m.remove(c)
		case <-m.done:
			return
		}
	}
}

// Register adds c. It reports false once the manager has stopped.
func (m *Manager) Register(c *Client) bool {
	select {
	case m.register <- c:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) Unregister(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.done:
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop waits for in-flight saves, then closes every connection.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.trackMu.Lock()
		m.stopping = true
		m.trackMu.Unlock()

		close(m.done)
		m.background.Wait()

		m.mu.Lock()
		clients := make([]*Client, 0, len(m.sessions))
		for id, c := range m.sessions {
			clients = append(clients, c)
			delete(m.sessions, id)
		}
		m.mu.Unlock()

		for _, c := range clients {
			c.engine.Wait()
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			c.close()
		}
		slog.Info("sessions stopped", "count", len(clients))
	})
}

// track runs fn in the background; Stop waits for it. Once Stop has
// begun, fn is not run and track reports false.
func (m *Manager) track(fn func()) bool {
	m.trackMu.Lock()
	if m.stopping {
		m.trackMu.Unlock()
		return false
	}
	m.background.Add(1)
	m.trackMu.Unlock()

	go func() {
		defer m.background.Done()
		fn()
	}()
	return true
}

func (m *Manager) add(c *Client) {
	m.mu.Lock()
	m.sessions[c.ClientID] = c
	n := len(m.sessions)
	m.mu.Unlock()

	c.log.Info("session opened", "sessions", n)
}

func (m *Manager) remove(c *Client) {
	m.mu.Lock()
	if _, ok := m.sessions[c.ClientID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, c.ClientID)
	m.mu.Unlock()

	c.close()
	c.log.Info("session closed", "dirty", c.engine.Dirty())
}
