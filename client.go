// Package triptalk provides a Go client for the Triptalk real-time chat
// service. It maintains one WebSocket per active room, reconnects with
// capped exponential backoff, deduplicates redelivered messages, and
// reconciles optimistic sends against server acknowledgments.
//
// Two conversation variants share the client: a post-scoped chat between a
// customer and an agency about a listing, and a ticket-scoped chat between
// an agency and the support desk.
package triptalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/triptalk/triptalk-go-sdk/store"
	"github.com/triptalk/triptalk-go-sdk/wire"
)

const (
	// connectTimeout bounds one dial attempt, including the handshake.
	connectTimeout = 10 * time.Second

	// Reconnection backoff: min(backoffBase << attempt, backoffCap).
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// intentionalClose is the status code sent on caller-initiated closes.
// Any other close code is treated as abnormal and retried.
const intentionalClose = ws.StatusNormalClosure

// Client connects to the Triptalk chat server. One physical socket exists
// per active room; switching rooms closes the old socket with the
// intentional code before opening a new one. Safe for concurrent use.
type Client struct {
	cfg Config
	met *metrics

	mu       sync.Mutex
	state    ConnState
	conn     net.Conn
	connDone chan struct{} // closed when the current socket is abandoned
	gen      uint64        // bumped on every room switch or disconnect
	selector RoomSelector
	roomKey  string
	attempt  int
	retry    *time.Timer
	loading  bool
	lastErr  error
	sendCh   chan []byte
	msgs     *store.Store
	tempIDs  *store.TempIDGen
	tickets  []Ticket

	onMessage MessageHandler
	onTicket  TicketHandler
	onState   StateHandler

	// dialFn is replaced in tests.
	dialFn func(ctx context.Context, urlstr string) (net.Conn, error)
}

// New creates a client. No connection is opened until Connect.
func New(cfg Config) *Client {
	c := &Client{
		cfg:     cfg,
		sendCh:  make(chan []byte, 256),
		msgs:    store.New(),
		tempIDs: store.NewTempIDGen(),
	}
	if cfg.Metrics != nil {
		c.met = newMetrics(cfg.Metrics)
	}
	c.dialFn = func(ctx context.Context, urlstr string) (net.Conn, error) {
		conn, _, _, err := ws.Dial(ctx, urlstr)
		return conn, err
	}
	return c
}

// OnMessage registers a callback for every message appended to or
// reconciled in the store. Callbacks chain.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.onMessage = chainMessageHandler(c.onMessage, h)
	c.mu.Unlock()
}

// OnTicket registers a callback for ticket lifecycle events.
func (c *Client) OnTicket(h TicketHandler) {
	c.mu.Lock()
	c.onTicket = chainTicketHandler(c.onTicket, h)
	c.mu.Unlock()
}

// OnStateChange registers a callback for connection state transitions.
// Callbacks run on their own goroutine and must not assume ordering with
// respect to store updates.
func (c *Client) OnStateChange(h StateHandler) {
	c.mu.Lock()
	c.onState = chainStateHandler(c.onState, h)
	c.mu.Unlock()
}

// Connect opens the room identified by sel. If another room is active it is
// closed first with the intentional code; its dedup window, pending registry
// and any in-flight reconnection timer are discarded. Connecting to the
// already-active room is a no-op.
//
// Connect returns once the connection attempt is started; completion is
// observed via State, Loading and Err. ctx bounds the first dial attempt;
// retries run in the background until Disconnect.
func (c *Client) Connect(ctx context.Context, sel RoomSelector) error {
	if c.cfg.UserID == "" {
		return fmt.Errorf("triptalk: config has no user id")
	}

	key := sel.Key()
	c.mu.Lock()
	if c.state != StateDisconnected && key == c.roomKey {
		c.mu.Unlock()
		return nil
	}
	c.teardownLocked()
	c.selector = sel
	c.roomKey = key
	c.loading = true
	c.lastErr = nil
	c.attempt = 0
	c.setStateLocked(StateConnecting)
	gen := c.gen
	c.mu.Unlock()

	go c.runConnect(ctx, gen)
	return nil
}

// Disconnect closes the active room, cancels any pending reconnection, and
// clears the store. The server sees the intentional close code.
func (c *Client) Disconnect() {
	c.mu.Lock()
	key := c.roomKey
	c.teardownLocked()
	c.roomKey = ""
	c.selector = RoomSelector{}
	c.mu.Unlock()
	if key != "" {
		slog.Info("disconnected", "room", key)
	}
}

// Send transmits content to the room identified by sel and appends an
// optimistic pending entry keyed by a fresh temp id. It returns the pending
// entry immediately; the entry is patched in place once the server
// acknowledgment tagged with the same temp id arrives. While disconnected
// Send fails locally with ErrNotConnected and sends nothing.
func (c *Client) Send(content string, sel RoomSelector) (Message, error) {
	return c.send(content, "", sel)
}

// OpenTicket sends the first message of a new support ticket. The server
// creates the ticket and responds with a ticket_created event.
func (c *Client) OpenTicket(content, subject string) (Message, error) {
	return c.send(content, subject, RoomSelector{})
}

func (c *Client) send(content, subject string, sel RoomSelector) (Message, error) {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.lastErr = ErrNotConnected
		c.mu.Unlock()
		return Message{}, ErrNotConnected
	}

	m := store.Message{
		TempID:     c.tempIDs.Next(),
		Content:    content,
		SenderID:   c.cfg.UserID,
		ReceiverID: sel.CustomerID,
		PostID:     sel.PostID,
		PostType:   sel.PostType,
		TicketID:   sel.TicketID,
		CreatedAt:  time.Now(),
		Pending:    true,
	}
	payload, err := wire.EncodeSend(wire.SendData{
		Content:    content,
		PostID:     sel.PostID,
		PostType:   sel.PostType,
		UserID:     c.cfg.UserID,
		RoomID:     c.roomKey,
		CustomerID: sel.CustomerID,
		TempID:     m.TempID,
		TicketID:   sel.TicketID,
		Subject:    subject,
	})
	if err != nil {
		c.mu.Unlock()
		return Message{}, fmt.Errorf("encode send: %w", err)
	}

	c.msgs.AppendPending(m)
	c.lastErr = nil
	c.enqueue(payload)
	c.mu.Unlock()

	c.met.send()
	return m, nil
}

// MarkAsRead optimistically flips the local read flag and notifies the
// server. Fire-and-forget: it does not wait for confirmation and does not
// revert on failure.
func (c *Client) MarkAsRead(messageID string) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.lastErr = ErrNotConnected
		c.mu.Unlock()
		return ErrNotConnected
	}
	payload, err := wire.EncodeMarkAsRead(messageID, c.cfg.UserID)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("encode markAsRead: %w", err)
	}
	c.msgs.MarkRead(messageID)
	c.lastErr = nil
	c.enqueue(payload)
	c.mu.Unlock()
	return nil
}

// Clear wipes the message store and the surfaced error without touching the
// connection.
func (c *Client) Clear() {
	c.mu.Lock()
	c.msgs.Clear()
	c.lastErr = nil
	c.mu.Unlock()
}

// Messages returns the ordered conversation, oldest first (snapshot).
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs.Messages()
}

// Tickets returns the caller's support tickets (snapshot, ticket variant).
func (c *Client) Tickets() []Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Ticket, len(c.tickets))
	copy(out, c.tickets)
	return out
}

// State returns the connection lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the socket is open.
func (c *Client) Connected() bool { return c.State() == StateConnected }

// Loading reports whether the client is between Connect and the first
// successful open for the active room.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the last surfaced failure. It is cleared by the next
// successful operation.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Room returns the active room key, or "" when disconnected.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomKey
}

// --- Connection state machine ---

// backoffDelay returns the capped exponential delay for the given attempt:
// 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
func backoffDelay(attempt int) time.Duration {
	if attempt > 5 {
		return backoffCap
	}
	d := backoffBase << attempt
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func (c *Client) connectURL(sel RoomSelector) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	sel.query(q, c.cfg.UserID, c.cfg.UserRole, c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// runConnect performs one dial attempt for generation gen. Failures are not
// fatal: they schedule a retry as long as gen is still current.
func (c *Client) runConnect(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	sel := c.selector
	key := c.roomKey
	c.mu.Unlock()

	urlstr, err := c.connectURL(sel)
	if err == nil {
		dctx, cancel := context.WithTimeout(ctx, connectTimeout)
		var conn net.Conn
		conn, err = c.dialFn(dctx, urlstr)
		cancel()
		if err == nil {
			c.mu.Lock()
			if gen != c.gen {
				// Caller switched rooms or disconnected mid-dial.
				c.mu.Unlock()
				conn.Close()
				return
			}
			c.conn = conn
			c.connDone = make(chan struct{})
			c.attempt = 0
			c.loading = false
			c.lastErr = nil
			c.setStateLocked(StateConnected)
			done := c.connDone
			c.mu.Unlock()

			slog.Info("connected", "room", key)
			go c.readLoop(conn, gen)
			go c.writeLoop(conn, done)
			return
		}
	}

	c.mu.Lock()
	if gen == c.gen {
		c.lastErr = fmt.Errorf("connect %s: %w", key, err)
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()
}

// scheduleReconnectLocked moves to reconnecting and arms the retry timer.
// The timer callback re-checks that its generation and room key are still
// current before dialing, so a user who switched rooms during the backoff
// window never reconnects into the abandoned room.
func (c *Client) scheduleReconnectLocked() {
	delay := backoffDelay(c.attempt)
	c.attempt++
	c.setStateLocked(StateReconnecting)
	c.met.reconnect()

	gen := c.gen
	key := c.roomKey
	slog.Warn("reconnect scheduled", "room", key, "attempt", c.attempt, "delay", delay)

	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen || key != c.roomKey || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()
		c.runConnect(context.Background(), gen)
	})
}

// teardownLocked invalidates the current generation: stops the retry timer,
// closes the socket with the intentional code, and clears per-room state.
func (c *Client) teardownLocked() {
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	if c.conn != nil {
		body := ws.NewCloseFrameBody(intentionalClose, "")
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, body)
		c.conn.Close()
		c.conn = nil
	}
	c.msgs.Clear()
	c.tickets = nil
	c.loading = false
	c.setStateLocked(StateDisconnected)

	// Drain frames queued for the old room.
	for {
		select {
		case <-c.sendCh:
		default:
			return
		}
	}
}

func (c *Client) setStateLocked(s ConnState) {
	if c.state == s {
		return
	}
	c.state = s
	c.met.state(s)
	if h := c.onState; h != nil {
		go h(s)
	}
}

// --- Socket loops ---

func (c *Client) readLoop(conn net.Conn, gen uint64) {
	for {
		data, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			c.handleSocketDown(gen, err)
			return
		}

		// Large history payloads arrive as binary frames holding
		// zstd-compressed JSON; everything else is plain text.
		if op == ws.OpBinary {
			data, err = wire.Decompress(data)
			if err != nil {
				slog.Debug("bad compressed frame", "error", err)
				continue
			}
		}

		f, err := wire.DecodeServerFrame(data)
		if err != nil {
			slog.Debug("dropping frame", "error", err)
			continue
		}

		c.handleFrame(gen, f)
	}
}

func (c *Client) writeLoop(conn net.Conn, done chan struct{}) {
	for {
		select {
		case data := <-c.sendCh:
			if err := wsutil.WriteClientText(conn, data); err != nil {
				slog.Warn("write error", "error", err)
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (c *Client) enqueue(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		slog.Warn("send queue full, dropping frame")
	}
}

// handleSocketDown runs when the read loop dies. An intentional close has
// already bumped the generation, so only abnormal failures get here with a
// current gen and schedule a reconnect.
func (c *Client) handleSocketDown(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}

	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var ce wsutil.ClosedError
	if errors.As(err, &ce) {
		// Server-initiated close. A benign rotation is not surfaced as an
		// error; anything else is an abnormal closure. Both reconnect.
		if ce.Code != intentionalClose {
			c.lastErr = fmt.Errorf("connection closed: %d %s", ce.Code, ce.Reason)
		}
		slog.Warn("server closed connection", "room", c.roomKey, "code", ce.Code)
	} else {
		c.lastErr = fmt.Errorf("transport: %w", err)
		slog.Warn("read error", "room", c.roomKey, "error", err)
	}

	c.scheduleReconnectLocked()
}

// --- Frame dispatch ---

func (c *Client) handleFrame(gen uint64, f wire.ServerFrame) {
	switch f.Type {
	case wire.TypeConnection:
		slog.Debug("session established", "session", f.Session.SessionID, "room", f.Session.RoomID)

	case wire.TypeHistory:
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.msgs.ReplaceHistory(f.History, c.cfg.UserID, c.selector.CustomerID)
		c.lastErr = nil
		c.mu.Unlock()

	case wire.TypeMessage:
		if f.Message != nil {
			c.applyInbound(gen, *f.Message)
		}
		for _, d := range f.Batch {
			c.applyInbound(gen, d)
		}

	case wire.TypeTickets:
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.tickets = c.tickets[:0]
		for _, d := range f.Tickets {
			c.tickets = append(c.tickets, ticketFromWire(d))
		}
		c.mu.Unlock()

	case wire.TypeTicketCreated, wire.TypeTicketClosed:
		t := ticketFromWire(*f.Ticket)
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.upsertTicketLocked(t)
		h := c.onTicket
		c.mu.Unlock()
		if h != nil {
			h(f.Type, t)
		}

	case wire.TypeError:
		c.mu.Lock()
		if gen == c.gen {
			c.lastErr = fmt.Errorf("server: %s", f.Err)
		}
		c.mu.Unlock()
		slog.Warn("server error", "error", f.Err)
	}
}

func (c *Client) applyInbound(gen uint64, d wire.MessageData) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	changed := c.msgs.ApplyInbound(d)
	h := c.onMessage
	c.mu.Unlock()

	if !changed {
		c.met.duplicate()
		return
	}
	if h != nil {
		h(store.FromWire(d))
	}
}

func (c *Client) upsertTicketLocked(t Ticket) {
	for i := range c.tickets {
		if c.tickets[i].ID == t.ID {
			c.tickets[i] = t
			return
		}
	}
	c.tickets = append(c.tickets, t)
}
