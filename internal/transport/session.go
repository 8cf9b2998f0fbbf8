// Package transport implements the connection manager: the WebSocket
// upgrade endpoint, one Session per connected player, and the action
// dispatcher that turns decoded client messages into StateStore calls.
package transport

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lab1702/arena-server/internal/game"
)

const (
	readTimeout  = 60 * time.Second // tolerate up to 60s of inbound silence before dropping the peer
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// localDevHosts are treated as trusted regardless of port, so a developer
// running the game client from a plain file server or a different local
// port than the one the arena server listens on isn't locked out.
var localDevHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
}

func isLocalDevHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return localDevHosts[host]
}

// isValidOrigin rejects cross-site WebSocket upgrade attempts. A request
// with no Origin header is assumed to come from a non-browser client (a
// bot, a CLI, a load test) and is let through; browsers always set it.
func isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		log.Printf("arena: rejecting connection, unparseable origin %q", origin)
		return false
	}

	if u.Host == r.Host || isLocalDevHost(u.Host) {
		return true
	}

	log.Printf("arena: rejecting connection from origin %q (host %q)", origin, r.Host)
	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       isValidOrigin,
	EnableCompression: true,
}

// Session pairs a transport peer with exactly one PlayerID.
type Session struct {
	id     game.PlayerID
	conn   *websocket.Conn
	send   *outboundQueue
	server *Server

	closeOnce sync.Once
}

// Server is the connection manager: it owns every live Session and the
// authoritative StateStore, and runs the tick loop and broadcaster.
type Server struct {
	store      *game.StateStore
	maxPlayers int

	mu      sync.RWMutex
	clients map[game.PlayerID]*Session

	nextID    uint64
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewServer constructs a connection manager over the given authoritative store.
func NewServer(store *game.StateStore, maxPlayers int) *Server {
	return &Server{
		store:      store,
		maxPlayers: maxPlayers,
		clients:    make(map[game.PlayerID]*Session),
		done:       make(chan struct{}),
	}
}

// Run starts the tick loop and broadcaster. It blocks until Shutdown is called.
func (s *Server) Run() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.tickLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.broadcastLoop()
	}()
	<-s.done
	s.wg.Wait()
}

// Shutdown stops the tick loop/broadcaster and gracefully closes every session.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.clients))
	for _, c := range s.clients {
		sessions = append(sessions, c)
	}
	s.mu.RUnlock()

	for _, c := range sessions {
		c.close()
	}
}

func newPlayerID(counter uint64) game.PlayerID {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return game.PlayerID(fmt.Sprintf("p-%d-%s", counter, hex.EncodeToString(buf[:])))
}

// HandleWebSocket accepts a new bidirectional client session.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	id := newPlayerID(atomic.AddUint64(&s.nextID, 1))

	if err := s.store.AddPlayer(id); err != nil {
		writeOnce(conn, outboundEnvelope{
			Type: TypeError,
			Payload: errorPayload{
				Code:    capacityOrIdentityCode(err),
				Message: err.Error(),
			},
		})
		conn.Close()
		return
	}

	session := &Session{
		id:     id,
		conn:   conn,
		send:   newOutboundQueue(),
		server: s,
	}

	s.mu.Lock()
	s.clients[id] = session
	s.mu.Unlock()

	log.Printf("player joined: %s", id)

	// Send both init and playerId for backward compatibility.
	initPayload := map[string]string{"id": string(id)}
	session.send.enqueue(outboundEnvelope{Type: TypeInit, Payload: initPayload}, true)
	session.send.enqueue(outboundEnvelope{Type: TypePlayerID, Payload: initPayload}, true)

	go session.writePump()
	go session.readPump()
}

func capacityOrIdentityCode(err error) string {
	if errors.Is(err, game.ErrFull) {
		return CodeCapacity
	}
	return CodeIdentity
}

// writeOnce sends a single message directly to a not-yet-registered peer.
func writeOnce(conn *websocket.Conn, msg outboundEnvelope) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteJSON(msg)
}

// readPump is the only task that reads from the peer.
func (c *Session) readPump() {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var env inboundEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error for %s: %v", c.id, err)
			}
			return
		}
		c.server.dispatch(c, env)
	}
}

// writePump is the only task that writes to the peer.
func (c *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.send.wake:
			for {
				msg, ok := c.send.drain()
				if !ok {
					break
				}
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.conn.WriteJSON(msg); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// close performs the one-shot session cleanup: remove the
// player from state, close the peer, drain and discard the outbound queue.
// Double-close is a no-op.
func (c *Session) close() {
	c.closeOnce.Do(func() {
		c.server.mu.Lock()
		delete(c.server.clients, c.id)
		c.server.mu.Unlock()

		_ = c.server.store.RemovePlayer(c.id)
		c.send.discard()
		c.conn.Close()

		log.Printf("player left: %s", c.id)
	})
}
