package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradestream/internal/common"
	"tradestream/internal/logger"
	"tradestream/internal/store"
)

// ErrUnauthenticated is the single error callers see for any credential
// failure, whatever the underlying cause.
var ErrUnauthenticated = errors.New("could not validate credentials")

// DuplicateUserError reports a registration that collides with an existing
// username or email.
type DuplicateUserError struct {
	Username string
	Email    string
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("User with username '%s' or email '%s' already registered", e.Username, e.Email)
}

// Identity is the authenticated principal behind a token.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
	Claims    map[string]any
}

// TokenGrant is the result of a successful login.
type TokenGrant struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// NewUser holds validated registration input.
type NewUser struct {
	Username string
	Email    string
	Password string
	FullName string
}

// FailureRecorder counts authentication failures by kind.
type FailureRecorder interface {
	RecordAuthFailure(kind string)
}

// Service implements login, registration and identity resolution.
type Service struct {
	tokens   *TokenService
	users    store.UserStore
	hasher   PasswordHasher
	ids      common.IDGenerator
	clock    common.Clock
	log      logger.Logger
	recorder FailureRecorder

	// compared against on unknown usernames so both failure paths cost one
	// hash comparison.
	decoyDigest string
}

// Option customises a Service.
type Option func(*Service)

// WithFailureRecorder attaches a metrics sink for auth failures.
func WithFailureRecorder(r FailureRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithIDGenerator overrides UUID generation for new users.
func WithIDGenerator(g common.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock overrides the clock used for created_at.
func WithClock(c common.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService wires the auth service.
func NewService(tokens *TokenService, users store.UserStore, hasher PasswordHasher, log logger.Logger, opts ...Option) (*Service, error) {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		tokens: tokens,
		users:  users,
		hasher: hasher,
		ids:    common.UUIDGenerator{},
		clock:  common.SystemClock{},
		log:    log.WithField("component", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}

	decoy, err := hasher.Hash("decoy-password-for-unknown-users")
	if err != nil {
		return nil, fmt.Errorf("auth: prepare decoy digest: %w", err)
	}
	s.decoyDigest = decoy
	return s, nil
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// ResolveIdentity verifies token and returns its identity. Every failure is
// reported as ErrUnauthenticated.
func (s *Service) ResolveIdentity(token string) (*Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.fail(err)
		return nil, ErrUnauthenticated
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		s.fail(ErrInvalidClaims)
		return nil, ErrUnauthenticated
	}

	identity := &Identity{
		Subject: sub,
		Claims:  map[string]any(claims),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}

// ResolveBearer parses an Authorization header value and resolves it.
func (s *Service) ResolveBearer(header string) (*Identity, error) {
	token, ok := ParseBearer(header)
	if !ok {
		s.fail(ErrMissingCredential)
		return nil, ErrUnauthenticated
	}
	return s.ResolveIdentity(token)
}

// Login checks the credentials and issues a token whose subject is the
// username. Unknown users and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenGrant, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("auth: find user: %w", err)
	}

	if user == nil {
		s.hasher.Verify(password, s.decoyDigest)
		s.fail(errLoginRejected)
		return nil, ErrUnauthenticated
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.fail(errLoginRejected)
		return nil, ErrUnauthenticated
	}

	token, err := s.tokens.Issue(map[string]any{"sub": user.Username})
	if err != nil {
		return nil, err
	}
	return &TokenGrant{AccessToken: token, TokenType: "bearer"}, nil
}

// Register creates a user after a combined username-or-email existence
// check. The check and the insert are not atomic: two concurrent
// registrations for the same name can both succeed.
func (s *Service) Register(ctx context.Context, nu NewUser) (string, error) {
	exists, err := s.users.UserExists(ctx, nu.Username, nu.Email)
	if err != nil {
		return "", fmt.Errorf("auth: check user existence: %w", err)
	}
	if exists {
		return "", &DuplicateUserError{Username: nu.Username, Email: nu.Email}
	}

	digest, err := s.hasher.Hash(nu.Password)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}

	user := &store.User{
		ID:           s.ids.NewID(),
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: digest,
		FullName:     nu.FullName,
		CreatedAt:    s.clock.Now().UTC(),
	}
	id, err := s.users.InsertUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("auth: insert user: %w", err)
	}

	s.log.Info("User registered", "username", nu.Username, "user_id", id)
	return id, nil
}

var errLoginRejected = errors.New("auth: bad username or password")

func (s *Service) fail(cause error) {
	kind := FailureKind(cause)
	if errors.Is(cause, errLoginRejected) {
		kind = "bad_credentials"
	}
	s.log.Debug("Authentication failed", "kind", kind, "error", cause.Error())
	if s.recorder != nil {
		s.recorder.RecordAuthFailure(kind)
	}
}
