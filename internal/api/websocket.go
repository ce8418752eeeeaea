package api

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"tradestream/internal/common"
	"tradestream/internal/config"
	"tradestream/internal/logger"
	"tradestream/internal/monitoring"
	"tradestream/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 4096
)

// StreamHandler upgrades connections and runs one stream.Session per
// connection.
type StreamHandler struct {
	upgrader    websocket.Upgrader
	resolver    stream.Resolver
	cfg         stream.Config
	authTimeout time.Duration
	metrics     *monitoring.Metrics
	clock       common.Clock
	ids         common.IDGenerator
	log         logger.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewStreamHandler creates a stream handler from the stream settings.
func NewStreamHandler(resolver stream.Resolver, cfg config.StreamConfig, metrics *monitoring.Metrics, clock common.Clock, ids common.IDGenerator, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot attach an Authorization header to a websocket
			// handshake, so origin checks add nothing over the bearer check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		resolver:    resolver,
		cfg:         stream.Config{QueueSize: cfg.QueueSize, Interval: cfg.Interval},
		authTimeout: cfg.AuthMessageTimeout,
		metrics:     metrics,
		clock:       clock,
		ids:         ids,
		log:         log.WithField("component", "stream"),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// TradeStream godoc
// @Summary Live trade stream
// @Description WebSocket. Closes with 1008 when the bearer credential is missing or invalid.
// @Tags Trades
// @Security BearerAuth
// @Router /websocket/v1/trade-stream [get]
func (h *StreamHandler) TradeStream(c *gin.Context) {
	header := c.GetHeader("Authorization")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err.Error())
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxInboundSize)

	id := h.ids.NewID()
	log := h.log.WithField("session_id", id)
	transport := newWSTransport(conn)
	session := stream.NewSession(transport, h.cfg,
		stream.WithID(id),
		stream.WithClock(h.clock),
		stream.WithLogger(log),
		stream.WithObserver(h.metrics),
	)

	if header == "" && h.authTimeout > 0 {
		header = h.readCredential(conn)
	}

	if _, err := session.Authenticate(header, h.resolver); err != nil {
		h.metrics.SessionRejected()
		transport.closeWith(websocket.ClosePolicyViolation)
		session.Close()
		return
	}

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.track(id, cancel)
	defer h.untrack(id)

	go transport.readLoop(cancel)

	if err := session.Run(ctx); err != nil {
		log.Error("Stream session failed", "error", err.Error())
		transport.closeWith(websocket.CloseInternalServerErr)
		return
	}
	transport.closeWith(websocket.CloseNormalClosure)
}

// readCredential reads the first text frame as an Authorization value.
func (h *StreamHandler) readCredential(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(h.authTimeout))
	mt, data, err := conn.ReadMessage()
	if err != nil || mt != websocket.TextMessage {
		return ""
	}
	_ = conn.SetReadDeadline(time.Time{})
	return string(data)
}

// CloseAll cancels every running session.
func (h *StreamHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.cancels {
		cancel()
	}
}

// Active returns the number of running sessions.
func (h *StreamHandler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cancels)
}

func (h *StreamHandler) track(id string, cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancels[id] = cancel
	h.mu.Unlock()
}

func (h *StreamHandler) untrack(id string) {
	h.mu.Lock()
	delete(h.cancels, id)
	h.mu.Unlock()
}

// wsTransport adapts a websocket connection to stream.Transport. Only the
// session consumer calls WriteText; close frames go through WriteControl,
// which gorilla allows concurrently with other writers.
type wsTransport struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

// WriteText implements stream.Transport.
func (t *wsTransport) WriteText(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed.Load() {
		return stream.ErrPeerDisconnected
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if t.closed.Load() || isDisconnect(err) {
			return stream.ErrPeerDisconnected
		}
		return err
	}
	return nil
}

// readLoop drains inbound frames so control frames are processed, and
// cancels the session once the peer goes away.
func (t *wsTransport) readLoop(cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			t.closed.Store(true)
			return
		}
	}
}

func (t *wsTransport) closeWith(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func isDisconnect(err error) bool {
	var closeErr *websocket.CloseError
	return stderrors.As(err, &closeErr) ||
		stderrors.Is(err, websocket.ErrCloseSent) ||
		stderrors.Is(err, net.ErrClosed) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, syscall.ECONNRESET)
}
