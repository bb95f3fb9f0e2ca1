package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"proforma/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "ws-secret"

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", hub.Handler(middleware.NewAuthenticator(testSecret)))
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestHubPublishReachesClient(t *testing.T) {
	hub, url := newServer(t)

	conn, _, err := gorillaws.DefaultDialer.Dial(url+"?token="+token(t, middleware.RoleViewer), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("payment.recorded", map[string]string{"id": "p-1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "payment.recorded", msg.Event)
	assert.Equal(t, "p-1", msg.Data["id"])
}

func TestHubRejectsUnauthenticated(t *testing.T) {
	_, url := newServer(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"bad token", "?token=nope", http.StatusUnauthorized},
		{"unknown role", "?token=" + token(t, "guest"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := gorillaws.DefaultDialer.Dial(url+tt.query, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	// Run is not started; the queue absorbs then drops.
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish("invoice.updated", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
}
