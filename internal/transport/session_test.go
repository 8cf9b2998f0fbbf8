package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lab1702/arena-server/internal/game"
)

func httptestMux(gs *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gs.HandleWebSocket)
	return mux
}

// testHarness wires a Server to an httptest server and exposes a dialer.
type testHarness struct {
	t      *testing.T
	server *Server
	store  *game.StateStore
	http   *httptest.Server
}

func newHarness(t *testing.T, maxPlayers int) *testHarness {
	t.Helper()
	store := game.NewStateStore("test-match", game.DefaultSpawnPoints(), maxPlayers)
	gs := NewServer(store, maxPlayers)
	go gs.Run()

	mux := httptestMux(gs)
	h := httptest.NewServer(mux)

	t.Cleanup(func() {
		gs.Shutdown()
		h.Close()
	})

	return &testHarness{t: t, server: gs, store: store, http: h}
}

func (h *testHarness) dial() (*websocket.Conn, *initMsg) {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(h.t, err)

	var env inboundEnvelope
	require.NoError(h.t, conn.ReadJSON(&env))
	require.Equal(h.t, TypeInit, env.Type)

	var payload initMsg
	require.NoError(h.t, json.Unmarshal(env.Payload, &payload))

	return conn, &payload
}

type initMsg struct {
	ID string `json:"id"`
}

func readUntilType(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) inboundEnvelope {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(timeout))
		var env inboundEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read error waiting for %s: %v", typ, err)
		}
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("timed out waiting for message type %s", typ)
	return inboundEnvelope{}
}

func decodeGameState(t *testing.T, env inboundEnvelope) game.Snapshot {
	t.Helper()
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(env.Payload, &snap))
	return snap
}
