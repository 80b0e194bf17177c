package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket
// ============================================================================
//
// Observers connect to /ws/state and receive:
//   - "state_init" once on connect (accumulator totals + cooldown)
//   - "cue_triggered", "cooldown_denied", "asset_path_failed" as the
//     controller reaches those decisions
//
// Frames are JSON text messages: {type, ts, data}. Each client has its own
// write pump; a client whose send queue is full is disconnected.
//
// ============================================================================

const stateWSPath = "/ws/state"

// wsEnvelope is the wire format for WS messages.
type wsEnvelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func cueMessageType(o TriggerOutcome) (string, bool) {
	switch o {
	case OutcomeTriggered:
		return "cue_triggered", true
	case OutcomeCooldownDenied:
		return "cooldown_denied", true
	case OutcomePathFailed:
		return "asset_path_failed", true
	default:
		return "", false
	}
}

func marshalCueMessage(res TriggerResult) ([]byte, bool, error) {
	typ, ok := cueMessageType(res.Outcome)
	if !ok {
		return nil, false, nil
	}
	ts := res.At.UTC()
	if res.At.IsZero() {
		ts = time.Now().UTC()
	}
	msg, err := json.Marshal(wsEnvelope{Type: typ, Ts: &ts, Data: newMotionData(res)})
	if err != nil {
		return nil, true, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return msg, true, nil
}

// ============================================================================
// Hub
// ============================================================================

// wsHub tracks connected clients and fans frames out to them.
type wsHub struct {
	logger *slog.Logger

	broadcast chan []byte
	register  chan *wsClient
	done      chan struct{} // closed when run returns

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	sendBuf int
}

func newWSHub(logger *slog.Logger, sendBuf, broadcastBuf int) *wsHub {
	if sendBuf <= 0 {
		sendBuf = 16
	}
	if broadcastBuf <= 0 {
		broadcastBuf = 64
	}
	return &wsHub{
		logger:    logger,
		broadcast: make(chan []byte, broadcastBuf),
		register:  make(chan *wsClient, 16),
		done:      make(chan struct{}),
		clients:   make(map[*wsClient]struct{}),
		sendBuf:   sendBuf,
	}
}

// run processes hub traffic until ctx is canceled, then drops every client.
func (h *wsHub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			for {
				select {
				case c := <-h.register:
					c.close()
				default:
					return
				}
			}

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", "remote_addr", c.remoteAddr, "clients", n)

		case msg := <-h.broadcast:
			var slow []*wsClient
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.drop(c, "slow_client")
			}
		}
	}
}

// add hands c to the hub loop. It reports false and closes c when the hub
// has already stopped.
func (h *wsHub) add(c *wsClient) bool {
	select {
	case <-h.done:
		c.close()
		return false
	default:
	}

	select {
	case h.register <- c:
		return true
	case <-h.done:
		c.close()
		return false
	}
}

func (h *wsHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *wsHub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// drop removes c and closes it. Safe to call from any goroutine.
func (h *wsHub) drop(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// publish queues a frame without blocking; frames are dropped when the hub
// is backed up.
func (h *wsHub) publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type wsClient struct {
	hub        *wsHub
	conn       *websocket.Conn
	send       chan []byte
	closeOnce  sync.Once
	remoteAddr string
	logger     *slog.Logger
}

func newWSClient(hub *wsHub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *wsClient {
	return &wsClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// close closes the connection and the send queue exactly once.
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = 20 * time.Second
)

func (c *wsClient) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.logger.Debug("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", ce.Code, "reason", ce.Text)
		return
	}
	c.logger.Debug("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards inbound frames; it exists to process pongs and notice
// disconnects.
func (c *wsClient) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			c.hub.drop(c, "read_closed")
			return
		}
	}
}

// ============================================================================
// Server
// ============================================================================

type stateServer struct {
	logger   *slog.Logger
	hub      *wsHub
	cues     chan TriggerResult
	d        *motionDispatcher
	soundDir string
}

func newStateServer(logger *slog.Logger, soundDir string) *stateServer {
	return &stateServer{
		logger:   logger,
		hub:      newWSHub(logger, 0, 0),
		cues:     make(chan TriggerResult, 64),
		soundDir: soundDir,
	}
}

// attach sets the dispatcher used for state_init snapshots. The dispatcher
// in turn calls notify, so the two are wired after construction.
func (s *stateServer) attach(d *motionDispatcher) { s.d = d }

// notify is the dispatcher callback. It never blocks the caller.
func (s *stateServer) notify(res TriggerResult) {
	select {
	case s.cues <- res:
	default:
		s.logger.Warn("ws cue queue full, dropping", "outcome", res.Outcome)
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *stateServer) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Queue state_init before registering so it is the first frame.
	if s.d != nil {
		now := time.Now().UTC()
		msg, err := json.Marshal(wsEnvelope{
			Type: "state_init",
			Ts:   &now,
			Data: newStatusData(s.d.snapshot(), s.soundDir),
		})
		if err == nil {
			client.send <- msg
		}
	}

	if !s.hub.add(client) {
		s.logger.Debug("ws hub stopped, rejecting client", "remote_addr", r.RemoteAddr)
		return
	}

	// Pump lifetime is owned by the hub, not the request context.
	go client.writePump()
	go client.readPump()
}

// runBroadcaster turns controller decisions into WS frames.
func (s *stateServer) runBroadcaster(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-s.cues:
			msg, ok, err := marshalCueMessage(res)
			if err != nil {
				s.logger.Warn("ws broadcaster marshal failed", "error", err)
				continue
			}
			if ok {
				s.hub.publish(msg)
			}
		}
	}
}

// serve runs the hub, the broadcaster and the HTTP listener until ctx is
// canceled, then shuts the listener down gracefully.
func (s *stateServer) serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc(stateWSPath, s.handleStateWS)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.hub.run(ctx)
	go s.runBroadcaster(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("state ws server: %w", err)
			return
		}
		errCh <- nil
	}()

	s.logger.Info("state ws listening", "addr", addr, "path", stateWSPath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("state ws shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
