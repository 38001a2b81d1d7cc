package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picguess/picguess-backend/internal"
)

func dialWS(t *testing.T, httpURL, path string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(httpURL, "http://", "ws://", 1) + path
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitEvent reads frames until one of the wanted type arrives and decodes
// its payload into out.
func awaitEvent(t *testing.T, conn *websocket.Conn, msgType string, out any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(8*time.Second)))
	for {
		var msg internal.Message[json.RawMessage]
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", msgType)
		if msg.Type != msgType {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(msg.Data, out))
		}
		return
	}
}

func TestWebSocket_FullGameFlow(t *testing.T) {
	ts := newTestServer(t)
	created := createRoom(t, ts, `{"round_duration_ms": 30000, "total_rounds": 5}`)

	resp := doJSON(t, http.MethodPost, ts.URL+"/rooms/"+created.RoomID+"/assets", created.HostToken,
		`{"reference": "https://img.example/eiffel.jpg", "answer_text": "Eiffel Tower"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	host := dialWS(t, ts.URL, "/ws/"+created.RoomID+"?role=host&token="+created.HostToken)
	var hostJoined internal.RoomJoinedData
	awaitEvent(t, host, internal.MsgRoomJoined, &hostJoined)
	assert.True(t, hostJoined.IsHost)
	assert.Equal(t, internal.StateLobby, hostJoined.State)

	player := dialWS(t, ts.URL, "/ws/"+created.RoomID+"?name=alice")
	var joined internal.RoomJoinedData
	awaitEvent(t, player, internal.MsgRoomJoined, &joined)
	assert.False(t, joined.IsHost)
	assert.NotEmpty(t, joined.PlayerID)
	assert.Equal(t, "alice", joined.Players[0].DisplayName)

	// Players cannot start the game.
	require.NoError(t, player.WriteJSON(internal.Message[any]{Type: internal.MsgStartGame}))
	var startErr internal.ErrorData
	awaitEvent(t, player, internal.MsgError, &startErr)
	assert.Equal(t, internal.ErrKindInvalidRequest, startErr.Kind)

	require.NoError(t, host.WriteJSON(internal.Message[any]{Type: internal.MsgStartGame}))

	var round internal.RoundStartedData
	awaitEvent(t, player, internal.MsgRoundStarted, &round)
	assert.Equal(t, 1, round.Round)
	assert.Equal(t, 1, round.TotalRounds, "rounds clamp to the single asset")
	assert.Equal(t, "https://img.example/eiffel.jpg", round.ImageReference)

	require.NoError(t, player.WriteJSON(internal.Message[any]{Type: internal.MsgGuess, Data: "the eiffel tower"}))
	var result internal.GuessResultData
	awaitEvent(t, player, internal.MsgGuessResult, &result)
	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.Position)
	assert.InDelta(t, 1.0, result.Quality, 1e-9)
	assert.Positive(t, result.Points)

	var board internal.LeaderboardData
	awaitEvent(t, host, internal.MsgLeaderboardUpdate, &board)
	assert.Equal(t, 1, board.AnsweredCount)

	// Host dropping mid-round is announced but play continues.
	host.Close()
	var warning internal.ErrorData
	awaitEvent(t, player, internal.MsgHostDisconnected, &warning)
	assert.Equal(t, internal.ErrKindHostLoss, warning.Kind)
}

func TestWebSocket_UnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	// The error frame is sent immediately before the close, which makes the
	// two race inside the write pump; repeat the dial so a dropped frame
	// cannot hide behind a lucky ordering.
	for i := 0; i < 25; i++ {
		conn := dialWS(t, ts.URL, "/ws/does-not-exist?name=alice")

		var errData internal.ErrorData
		awaitEvent(t, conn, internal.MsgError, &errData)
		assert.Equal(t, internal.ErrKindInvalidRequest, errData.Kind)

		// The server closes the socket after the error frame.
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		for {
			var msg internal.Message[json.RawMessage]
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
		}
		conn.Close()
	}
}
