package push_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajanik/maildeck/internal/push"
	"github.com/ajanik/maildeck/internal/session"
)

var upgrader = websocket.Upgrader{}

// wsServer runs a WebSocket endpoint at /ws that writes the given
// payloads to each client, then holds the connection open.
func wsServer(t *testing.T, payloads ...string) (*httptest.Server, chan string) {
	t.Helper()

	tokens := make(chan string, 4)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func openChannel(t *testing.T, srv *httptest.Server) *push.Channel {
	t.Helper()
	c := push.New(wsURL(srv), zerolog.Nop())
	c.Open(&session.Session{Token: "push-token"})
	t.Cleanup(c.Close)
	return c
}

// nextMsg runs the wait command with a timeout so a broken channel
// fails the test instead of hanging it.
func nextMsg(t *testing.T, c *push.Channel) interface{} {
	t.Helper()
	result := make(chan interface{}, 1)
	go func() {
		result <- c.WaitForEvent()()
	}()
	select {
	case msg := <-result:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for push message")
		return nil
	}
}

func TestDeliversNewMailEvent(t *testing.T) {
	srv, tokens := wsServer(t,
		`{"type":"new_email","data":{"from_address":"alice@example.com","subject":"Hi"}}`,
	)
	c := openChannel(t, srv)

	msg := nextMsg(t, c)
	eventMsg, ok := msg.(push.EventMsg)
	require.True(t, ok, "expected EventMsg, got %T", msg)

	assert.Equal(t, push.EventTypeNewEmail, eventMsg.Event.Type)
	data, ok := eventMsg.Event.NewMail()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", data.FromAddress)
	assert.Equal(t, "Hi", data.Subject)

	assert.Equal(t, "push-token", <-tokens)
}

func TestMalformedPayloadsAreDropped(t *testing.T) {
	srv, _ := wsServer(t,
		`{not json`,
		`{"data":{"x":1}}`,
		`{"type":"new_email","data":{"from_address":"bob@example.com","subject":"Ok"}}`,
	)
	c := openChannel(t, srv)

	// Only the well-formed event comes through; the garbage before it
	// neither surfaces nor kills the connection.
	msg := nextMsg(t, c)
	eventMsg, ok := msg.(push.EventMsg)
	require.True(t, ok, "expected EventMsg, got %T", msg)
	data, ok := eventMsg.Event.NewMail()
	require.True(t, ok)
	assert.Equal(t, "bob@example.com", data.FromAddress)
}

func TestUnknownEventTypePassesThrough(t *testing.T) {
	srv, _ := wsServer(t, `{"type":"mailbox_renamed","data":{}}`)
	c := openChannel(t, srv)

	msg := nextMsg(t, c)
	eventMsg, ok := msg.(push.EventMsg)
	require.True(t, ok)
	assert.Equal(t, "mailbox_renamed", eventMsg.Event.Type)

	_, isNewMail := eventMsg.Event.NewMail()
	assert.False(t, isNewMail)
}

func TestCloseYieldsClosedMsg(t *testing.T) {
	srv, _ := wsServer(t)
	c := openChannel(t, srv)

	c.Close()
	c.Close() // safe to repeat

	msg := nextMsg(t, c)
	_, ok := msg.(push.ClosedMsg)
	assert.True(t, ok, "expected ClosedMsg, got %T", msg)
	assert.Equal(t, push.StateDisconnected, c.State())
}

func TestReopenAfterCloseStaysLive(t *testing.T) {
	srv, _ := wsServer(t)
	c := push.New(wsURL(srv), zerolog.Nop())
	t.Cleanup(c.Close)

	sess := &session.Session{Token: "push-token"}
	c.Open(sess)
	require.Eventually(t, func() bool {
		return c.State() == push.StateConnected
	}, 5*time.Second, 10*time.Millisecond)

	// Sign-out followed by an immediate sign-in: the old loop's
	// teardown must not clobber the new loop's state.
	c.Close()
	c.Open(sess)

	require.Eventually(t, func() bool {
		return c.State() == push.StateConnected
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, push.StateConnected, c.State(),
		"reopened channel must survive the old loop's cleanup")

	// And the final Close must actually tear the new loop down.
	c.Close()
	assert.Equal(t, push.StateDisconnected, c.State())
	msg := nextMsg(t, c)
	_, ok := msg.(push.ClosedMsg)
	assert.True(t, ok, "expected ClosedMsg, got %T", msg)
}

func TestReopenDropsStaleEvents(t *testing.T) {
	// The first connection gets the stale event, every later one the
	// fresh event, so a reopened channel reveals which buffer it reads.
	var conns int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		payload := `{"type":"new_email","data":{"from_address":"new@example.com","subject":"Fresh"}}`
		if atomic.AddInt32(&conns, 1) == 1 {
			payload = `{"type":"new_email","data":{"from_address":"old@example.com","subject":"Stale"}}`
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := push.New(wsURL(srv), zerolog.Nop())
	t.Cleanup(c.Close)

	sess := &session.Session{Token: "push-token"}
	c.Open(sess)
	require.Eventually(t, func() bool {
		return c.State() == push.StateConnected
	}, 5*time.Second, 10*time.Millisecond)
	// Leave the first session's event unconsumed in the buffer.
	time.Sleep(100 * time.Millisecond)
	c.Close()

	c.Open(sess)
	msg := nextMsg(t, c)
	eventMsg, ok := msg.(push.EventMsg)
	require.True(t, ok, "expected EventMsg, got %T", msg)
	data, ok := eventMsg.Event.NewMail()
	require.True(t, ok)
	assert.Equal(t, "new@example.com", data.FromAddress,
		"a new session must never see the previous session's events")
}

func TestWaitBeforeOpenReturnsClosed(t *testing.T) {
	c := push.New("ws://127.0.0.1:1", zerolog.Nop())

	msg := c.WaitForEvent()()
	_, ok := msg.(push.ClosedMsg)
	assert.True(t, ok)
}
