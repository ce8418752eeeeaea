package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tradestream/internal/auth"
	"tradestream/internal/common"
	"tradestream/internal/logger"

	"golang.org/x/sync/errgroup"
)

// ErrPeerDisconnected is returned by a Transport whose peer has gone away.
// The session treats it as a normal end of stream.
var ErrPeerDisconnected = errors.New("stream: peer disconnected")

// ErrNotStreaming is returned by Run before a successful Authenticate.
var ErrNotStreaming = errors.New("stream: session is not authenticated")

// State is the lifecycle position of a Session.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateRejected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateRejected:
		return "rejected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Transport delivers text frames to the peer.
type Transport interface {
	WriteText(ctx context.Context, payload []byte) error
}

// Resolver turns an Authorization header value into an identity.
type Resolver interface {
	ResolveBearer(header string) (*auth.Identity, error)
}

// Observer is notified of queue traffic.
type Observer interface {
	MessageSent()
	MessageDropped()
}

// Message is one pushed payload.
type Message struct {
	Seq       uint64  `json:"seq"`
	Subject   string  `json:"subject"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// Config controls the producer and the queue.
type Config struct {
	QueueSize int
	Interval  time.Duration
}

// DefaultConfig returns a queue of 10 and a 500ms producer interval.
func DefaultConfig() Config {
	return Config{QueueSize: 10, Interval: 500 * time.Millisecond}
}

// Session is one authenticated stream connection.
type Session struct {
	id        string
	cfg       Config
	transport Transport
	clock     common.Clock
	log       logger.Logger
	observer  Observer

	state    atomic.Int32
	identity *auth.Identity
	queue    *Queue[Message]
	seq      uint64
}

// Option customises a Session.
type Option func(*Session)

// WithClock sets the clock used to stamp messages.
func WithClock(c common.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithObserver attaches a queue traffic observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithID sets the session identifier used in logs.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// NewSession creates a session in StateConnecting.
func NewSession(transport Transport, cfg Config, opts ...Option) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	s := &Session{
		cfg:       cfg,
		transport: transport,
		clock:     common.SystemClock{},
		log:       logger.NewNop(),
		queue:     NewQueue[Message](cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = common.UUIDGenerator{}.NewID()
	}
	s.log = s.log.WithField("session_id", s.id)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Identity returns the authenticated identity, nil before Streaming.
func (s *Session) Identity() *auth.Identity {
	return s.identity
}

// Queue exposes the outbound queue.
func (s *Session) Queue() *Queue[Message] {
	return s.queue
}

// Authenticate resolves the Authorization header value. On failure the
// session moves to StateRejected and auth.ErrUnauthenticated is returned;
// the caller closes the connection with a policy-violation frame.
func (s *Session) Authenticate(header string, resolver Resolver) (*auth.Identity, error) {
	s.state.Store(int32(StateAuthenticating))

	identity, err := resolver.ResolveBearer(header)
	if err != nil {
		s.state.Store(int32(StateRejected))
		s.log.Info("Stream connection rejected")
		return nil, auth.ErrUnauthenticated
	}

	s.identity = identity
	s.log = s.log.WithField("subject", identity.Subject)
	s.state.Store(int32(StateStreaming))
	return identity, nil
}

// Run starts the producer and the consumer and blocks until both exit.
// Cancelling ctx, a peer disconnect or the end of either loop stops the
// other. Only unexpected transport failures are returned.
func (s *Session) Run(ctx context.Context) error {
	if s.State() != StateStreaming {
		return ErrNotStreaming
	}
	defer s.state.Store(int32(StateClosed))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.produce(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return s.consume(gctx)
	})

	err := g.Wait()
	s.log.Info("Stream session finished", "error", errString(err))
	return err
}

// Close marks a session that never streamed as closed.
func (s *Session) Close() {
	s.state.Store(int32(StateClosed))
}

func (s *Session) produce(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.enqueue(s.nextMessage())
		}
	}
}

func (s *Session) nextMessage() Message {
	s.seq++
	now := s.clock.Now().UTC()
	return Message{
		Seq:       s.seq,
		Subject:   s.identity.Subject,
		Message:   fmt.Sprintf("Message from producer to client [%s] at %s", s.identity.Subject, now.Format(time.RFC3339Nano)),
		Timestamp: common.EpochSeconds(now),
	}
}

func (s *Session) enqueue(msg Message) {
	evicted, dropped := s.queue.Push(msg)
	if !dropped {
		return
	}
	s.log.Warn("Queue is full, dropping message", "dropped_seq", evicted.Seq)
	if s.observer != nil {
		s.observer.MessageDropped()
	}
}

func (s *Session) consume(ctx context.Context) error {
	for {
		msg, err := s.queue.Pop(ctx)
		if err != nil {
			return nil
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("stream: encode message: %w", err)
		}

		if err := s.transport.WriteText(ctx, payload); err != nil {
			if errors.Is(err, ErrPeerDisconnected) || ctx.Err() != nil {
				s.log.Debug("Peer disconnected", "seq", msg.Seq)
				return nil
			}
			return fmt.Errorf("stream: write message %d: %w", msg.Seq, err)
		}
		if s.observer != nil {
			s.observer.MessageSent()
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
