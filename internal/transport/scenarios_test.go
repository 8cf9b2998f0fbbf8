package transport

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lab1702/arena-server/internal/game"
)

func sendPlayerAction(t *testing.T, conn *websocket.Conn, innerType string, data interface{}) {
	t.Helper()
	err := conn.WriteJSON(map[string]interface{}{
		"type": TypePlayerAction,
		"payload": map[string]interface{}{
			"type": innerType,
			"data": data,
		},
	})
	require.NoError(t, err)
}

func sendMove(t *testing.T, conn *websocket.Conn, pos game.Vec3) {
	sendPlayerAction(t, conn, "move", map[string]interface{}{
		"position": map[string]float64{"x": pos.X, "y": pos.Y, "z": pos.Z},
	})
}

func sendShootDirection(t *testing.T, conn *websocket.Conn, dir game.Vec3) {
	sendPlayerAction(t, conn, "shoot", map[string]interface{}{
		"direction": map[string]float64{"x": dir.X, "y": dir.Y, "z": dir.Z},
	})
}

func TestScenarioJoinAndEcho(t *testing.T) {
	h := newHarness(t, 10)
	conn, init := h.dial()
	defer conn.Close()

	env := readUntilType(t, conn, TypeGameState, time.Second)
	snap := decodeGameState(t, env)

	p, ok := snap.Players[game.PlayerID(init.ID)]
	require.True(t, ok)
	require.Equal(t, 100, p.Health)
	require.True(t, p.IsAlive)
	require.Equal(t, game.DefaultSpawnPoints()[0], p.Position)
}

func TestScenarioKill(t *testing.T) {
	h := newHarness(t, 10)
	conn1, p1 := h.dial()
	defer conn1.Close()
	conn2, p2 := h.dial()
	defer conn2.Close()

	sendMove(t, conn1, game.Vec3{X: 0, Y: 0, Z: 0})
	sendMove(t, conn2, game.Vec3{X: 5, Y: 0, Z: 0})
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 4; i++ {
		sendShootDirection(t, conn1, game.Vec3{X: 1, Y: 0, Z: 0})
		time.Sleep(200 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		snap := h.store.GetSnapshot()
		victim := snap.Players[game.PlayerID(p2.ID)]
		shooter := snap.Players[game.PlayerID(p1.ID)]
		return victim.Health == 0 && !victim.IsAlive && victim.Deaths == 1 && shooter.Kills == 1
	}, time.Second, 20*time.Millisecond)
}

func TestScenarioRespawn(t *testing.T) {
	h := newHarness(t, 10)
	conn1, p1 := h.dial()
	defer conn1.Close()
	conn2, p2 := h.dial()
	defer conn2.Close()

	sendMove(t, conn1, game.Vec3{X: 0, Y: 0, Z: 0})
	sendMove(t, conn2, game.Vec3{X: 5, Y: 0, Z: 0})
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 4; i++ {
		sendShootDirection(t, conn1, game.Vec3{X: 1, Y: 0, Z: 0})
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return !h.store.GetSnapshot().Players[game.PlayerID(p2.ID)].IsAlive
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		snap := h.store.GetSnapshot()
		p, ok := snap.Players[game.PlayerID(p2.ID)]
		return ok && p.IsAlive && p.Health == 100
	}, game.RespawnDelay+time.Second, 20*time.Millisecond)

	snap := h.store.GetSnapshot()
	respawned := snap.Players[game.PlayerID(p2.ID)]
	require.Contains(t, game.DefaultSpawnPoints(), respawned.Position)
	require.Equal(t, 1, respawned.Deaths)
}

func TestScenarioDisconnectMidRespawnPreventsReinsertion(t *testing.T) {
	h := newHarness(t, 10)
	conn1, _ := h.dial()
	defer conn1.Close()
	conn2, p2 := h.dial()

	sendMove(t, conn1, game.Vec3{X: 0, Y: 0, Z: 0})
	sendMove(t, conn2, game.Vec3{X: 5, Y: 0, Z: 0})
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 4; i++ {
		sendShootDirection(t, conn1, game.Vec3{X: 1, Y: 0, Z: 0})
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return !h.store.GetSnapshot().Players[game.PlayerID(p2.ID)].IsAlive
	}, time.Second, 10*time.Millisecond)

	conn2.Close()

	require.Eventually(t, func() bool {
		_, ok := h.store.GetSnapshot().Players[game.PlayerID(p2.ID)]
		return !ok
	}, time.Second, 10*time.Millisecond)

	time.Sleep(game.RespawnDelay + 200*time.Millisecond)

	_, ok := h.store.GetSnapshot().Players[game.PlayerID(p2.ID)]
	require.False(t, ok)
}

func TestScenarioCapacity(t *testing.T) {
	h := newHarness(t, 2)
	conn1, _ := h.dial()
	defer conn1.Close()
	conn2, _ := h.dial()
	defer conn2.Close()

	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn3, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn3.Close()

	env := readUntilType(t, conn3, TypeError, time.Second)
	require.Equal(t, TypeError, env.Type)

	require.Eventually(t, func() bool {
		return len(h.store.GetSnapshot().Players) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestScenarioRename(t *testing.T) {
	h := newHarness(t, 10)
	conn1, p1 := h.dial()
	defer conn1.Close()

	err := conn1.WriteJSON(map[string]interface{}{
		"type":    TypeSetName,
		"payload": map[string]interface{}{"displayName": "Alice"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		p, ok := h.store.GetSnapshot().Players[game.PlayerID(p1.ID)]
		return ok && p.DisplayName == "Alice"
	}, time.Second, 10*time.Millisecond)
}
