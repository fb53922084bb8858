package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"couple-games-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketJoinSendsRoomStateSnapshotFirst(t *testing.T) {
	srv := newTestServer(t)
	httpSrv := httptest.NewServer(srv.router)
	defer httpSrv.Close()
	ctx := context.Background()

	alice, err := srv.storage.CreateUser(ctx, &models.User{Username: "alice"})
	require.NoError(t, err)
	bob, err := srv.storage.CreateUser(ctx, &models.User{Username: "bob"})
	require.NoError(t, err)

	gameData, err := json.Marshal(models.TruthOrDareState{})
	require.NoError(t, err)
	room, err := srv.storage.CreateRoom(ctx, &models.GameRoom{
		Player1ID:     alice.ID,
		Player2ID:     bob.ID,
		GameType:      models.GameTypeTruthOrDare,
		CurrentPlayer: bob.ID,
		GameData:      gameData,
	})
	require.NoError(t, err)

	aliceToken, err := srv.users.GenerateJWT(alice.ID)
	require.NoError(t, err)
	bobToken, err := srv.users.GenerateJWT(bob.ID)
	require.NoError(t, err)

	aliceConn := dialWS(t, httpSrv, aliceToken)
	require.NoError(t, aliceConn.WriteJSON(map[string]any{"type": "join", "roomId": room.ID}))

	// The first frame on a joining connection is always the full snapshot
	first := readWS(t, aliceConn)
	require.Equal(t, "room_state", first["type"])
	snapshot := first["room"].(map[string]any)
	assert.Equal(t, float64(room.ID), snapshot["id"])
	assert.NotNil(t, snapshot["gameData"])
	players := first["players"].(map[string]any)
	assert.Equal(t, "alice", players["player1"].(map[string]any)["username"])
	assert.Equal(t, "bob", players["player2"].(map[string]any)["username"])

	bobConn := dialWS(t, httpSrv, bobToken)
	require.NoError(t, bobConn.WriteJSON(map[string]any{"type": "join", "roomId": room.ID}))
	require.Equal(t, "room_state", readWS(t, bobConn)["type"])

	// Incremental broadcasts only ever follow the snapshot
	require.NoError(t, bobConn.WriteJSON(map[string]any{
		"type":   "truth_or_dare_choice",
		"roomId": room.ID,
		"choice": "truth",
	}))
	second := readWS(t, aliceConn)
	assert.Equal(t, "question_assigned", second["type"])
}

func TestWebSocketJoinRejectsNonParticipant(t *testing.T) {
	srv := newTestServer(t)
	httpSrv := httptest.NewServer(srv.router)
	defer httpSrv.Close()
	ctx := context.Background()

	alice, err := srv.storage.CreateUser(ctx, &models.User{Username: "alice"})
	require.NoError(t, err)
	bob, err := srv.storage.CreateUser(ctx, &models.User{Username: "bob"})
	require.NoError(t, err)
	carol, err := srv.storage.CreateUser(ctx, &models.User{Username: "carol"})
	require.NoError(t, err)

	gameData, err := json.Marshal(models.SyncState{})
	require.NoError(t, err)
	room, err := srv.storage.CreateRoom(ctx, &models.GameRoom{
		Player1ID:     alice.ID,
		Player2ID:     bob.ID,
		GameType:      models.GameTypeSync,
		CurrentPlayer: alice.ID,
		GameData:      gameData,
	})
	require.NoError(t, err)

	carolToken, err := srv.users.GenerateJWT(carol.ID)
	require.NoError(t, err)

	carolConn := dialWS(t, httpSrv, carolToken)
	require.NoError(t, carolConn.WriteJSON(map[string]any{"type": "join", "roomId": room.ID}))

	msg := readWS(t, carolConn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Not a participant of this room", msg["message"])
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	httpSrv := httptest.NewServer(srv.router)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
