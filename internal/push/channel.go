// Package push maintains the long-lived WebSocket subscription that
// delivers new-mail events from the backend. The channel never touches
// mail state itself; it only emits events for the application to act on.
package push

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ajanik/maildeck/internal/session"
)

// State is the connection phase of the channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// EventTypeNewEmail identifies a new-mail push event.
const EventTypeNewEmail = "new_email"

// Event is one parsed push message.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMailData is the payload of a new_email event.
type NewMailData struct {
	FromAddress string `json:"from_address"`
	Subject     string `json:"subject"`
}

// NewMail decodes the event payload as new-mail data. The second return
// is false when the event is not a new_email event or its data does not
// parse.
func (e Event) NewMail() (NewMailData, bool) {
	if e.Type != EventTypeNewEmail {
		return NewMailData{}, false
	}
	var data NewMailData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return NewMailData{}, false
	}
	return data, true
}

// EventMsg is the Bubble Tea message wrapping a delivered event.
type EventMsg struct {
	Event Event
}

// ClosedMsg is delivered when the channel has shut down for good
// (explicit close or retries exhausted).
type ClosedMsg struct{}

// Reconnect policy: bounded exponential backoff with capped attempts.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	maxAttempts    = 8
)

// Channel is a reconnecting WebSocket subscription. Open starts the
// connection loop; Close shuts it down deterministically and is safe to
// call more than once.
type Channel struct {
	wsURL  string
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	running bool

	// done is closed when the current run loop exits for good. It also
	// identifies the loop generation: a superseded loop must not touch
	// shared state once a newer Open has replaced it.
	done chan struct{}

	// events is replaced on every Open so a new session can never
	// receive notifications buffered by a previous one.
	events chan Event
}

// New creates a channel for the given WebSocket root URL
// (e.g. ws://localhost:8001).
func New(wsURL string, logger zerolog.Logger) *Channel {
	return &Channel{
		wsURL:  wsURL,
		dialer: websocket.DefaultDialer,
		logger: logger.With().Str("module", "push").Logger(),
	}
}

// Open starts the subscription using the session's bearer token for
// authorization. It returns immediately; connection progress is
// reflected by State and delivered events.
func (c *Channel) Open(sess *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.state = StateConnecting
	c.done = make(chan struct{})
	c.events = make(chan Event, 16)

	go c.run(ctx, sess.Token, c.done, c.events)
}

// Close tears down the subscription: the read loop stops, any pending
// reconnect wait is abandoned, and the socket is closed. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.cancel()
	c.running = false
	c.state = StateDisconnected
}

// State returns the current connection phase.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WaitForEvent returns a command that delivers the next push event to
// the Bubble Tea runtime. Re-issue it after handling each EventMsg to
// keep listening. Once the channel has shut down it yields ClosedMsg.
func (c *Channel) WaitForEvent() tea.Cmd {
	c.mu.Lock()
	done := c.done
	events := c.events
	c.mu.Unlock()

	return func() tea.Msg {
		if done == nil {
			return ClosedMsg{}
		}
		select {
		case event := <-events:
			return EventMsg{Event: event}
		case <-done:
			return ClosedMsg{}
		}
	}
}

// run drives the connect / read / backoff cycle until ctx is canceled
// or the attempt budget is spent.
func (c *Channel) run(
	ctx context.Context, token string,
	done chan struct{}, events chan Event,
) {
	defer func() {
		c.mu.Lock()
		// Only the current generation may reset the shared state; a
		// loop superseded by a newer Open leaves it alone.
		if c.done == done {
			c.running = false
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		close(done)
	}()

	endpoint := c.wsURL + "/ws?token=" + url.QueryEscape(token)
	backoff := initialBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		c.setState(done, StateConnecting)

		conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn().Err(err).
				Int("attempt", attempt+1).
				Msg("push connection failed")
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		c.setState(done, StateConnected)
		c.logger.Info().Msg("push channel connected")

		// A successful connection resets the retry budget.
		attempt = -1
		backoff = initialBackoff

		err = c.readLoop(ctx, conn, events)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn().Err(err).Msg("push connection lost, reconnecting")
		c.setState(done, StateConnecting)
		if !c.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}

	c.logger.Error().Msg("push channel gave up after repeated failures")
}

// readLoop reads messages until the connection drops or ctx is
// canceled. Malformed payloads are dropped and logged; they never end
// the loop.
func (c *Channel) readLoop(
	ctx context.Context, conn *websocket.Conn, events chan Event,
) error {
	// Unblock ReadMessage when the channel is closed.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.logger.Warn().Err(err).
				Str("payload", truncate(payload, 200)).
				Msg("dropping malformed push payload")
			continue
		}
		if event.Type == "" {
			c.logger.Warn().
				Str("payload", truncate(payload, 200)).
				Msg("dropping push payload without type")
			continue
		}

		select {
		case events <- event:
		default:
			// Queue full; drop rather than block the read loop.
			c.logger.Warn().Str("type", event.Type).Msg("event queue full")
		}
	}
}

// setState records the connection phase, unless a newer Open has
// superseded this loop generation.
func (c *Channel) setState(done chan struct{}, s State) {
	c.mu.Lock()
	if c.done == done {
		c.state = s
	}
	c.mu.Unlock()
}

// sleep waits for d or until ctx is canceled; reports whether to continue.
func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
