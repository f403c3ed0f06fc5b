package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/models"
	"kinship/security"
)

type received struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func startHub(t *testing.T) (*Manager, *security.Tokens, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(zap.NewNop())
	go m.Start(ctx)

	tokens := security.NewTokens("test-secret", time.Hour)
	srv := httptest.NewServer(m.Handler(tokens))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return m, tokens, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev received
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestSendToUserReachesEveryConnection(t *testing.T) {
	m, tokens, srv := startHub(t)
	user := &models.User{ID: primitive.NewObjectID(), Name: "Ann"}
	token, err := tokens.Issue(user)
	require.NoError(t, err)

	first := dial(t, srv, token)
	second := dial(t, srv, token)
	for _, conn := range []*websocket.Conn{first, second} {
		ev := read(t, conn)
		assert.Equal(t, "connected", ev.Type)
		assert.Equal(t, user.ID.Hex(), ev.Payload["userId"])
	}
	assert.Equal(t, 1, m.ConnectedUsers())

	m.SendToUser(user.ID.Hex(), "notification", map[string]string{"type": "like"})
	for _, conn := range []*websocket.Conn{first, second} {
		ev := read(t, conn)
		assert.Equal(t, "notification", ev.Type)
		assert.Equal(t, "like", ev.Payload["type"])
	}
}

func TestPingGetsPong(t *testing.T) {
	_, tokens, srv := startHub(t)
	token, err := tokens.Issue(&models.User{ID: primitive.NewObjectID()})
	require.NoError(t, err)

	conn := dial(t, srv, token)
	read(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)
}

func TestHandlerRejectsMissingOrBadToken(t *testing.T) {
	_, _, srv := startHub(t)

	for _, query := range []string{"", "?token=not-a-jwt"} {
		resp, err := http.Get(srv.URL + query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}
