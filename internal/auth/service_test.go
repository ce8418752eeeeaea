package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradestream/internal/common"
	"tradestream/internal/logger"
	"tradestream/internal/logger/loggertest"
	"tradestream/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (r *countingRecorder) RecordAuthFailure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kinds == nil {
		r.kinds = map[string]int{}
	}
	r.kinds[kind]++
}

func (r *countingRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kinds[kind]
}

// countingHasher wraps bcrypt at minimum cost and counts comparisons.
type countingHasher struct {
	*BcryptHasher
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) Verify(password, digest string) bool {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.BcryptHasher.Verify(password, digest)
}

type serviceFixture struct {
	svc      *Service
	users    *store.MemoryStore
	hasher   *countingHasher
	clock    *common.FixedClock
	recorder *countingRecorder
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := common.NewFixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := newTestTokens(t, clock)
	users := store.NewMemoryStore()
	hasher := &countingHasher{BcryptHasher: NewBcryptHasher(4)}
	recorder := &countingRecorder{}
	svc, err := NewService(tokens, users, hasher, logger.NewNop(),
		WithFailureRecorder(recorder), WithClock(clock))
	require.NoError(t, err)
	return &serviceFixture{svc: svc, users: users, hasher: hasher, clock: clock, recorder: recorder}
}

func (f *serviceFixture) register(t *testing.T, username, email, password string) string {
	t.Helper()
	id, err := f.svc.Register(context.Background(), NewUser{Username: username, Email: email, Password: password})
	require.NoError(t, err)
	return id
}

func TestRegisterAndLogin(t *testing.T) {
	f := newServiceFixture(t)
	id := f.register(t, "alice", "alice@example.com", "s3cretpass")
	assert.True(t, common.ValidateUUID(id))

	stored, err := f.users.FindUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cretpass", stored.PasswordHash)
	assert.True(t, stored.CreatedAt.Equal(f.clock.Now()))

	grant, err := f.svc.Login(context.Background(), "alice", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, "bearer", grant.TokenType)

	identity, err := f.svc.ResolveIdentity(grant.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Subject)
	assert.True(t, identity.ExpiresAt.Equal(time.Date(2024, 3, 1, 12, 31, 0, 0, time.UTC)))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cretpass")

	before := f.hasher.compares
	_, unknownErr := f.svc.Login(context.Background(), "nobody", "s3cretpass")
	assert.Equal(t, before+1, f.hasher.compares, "unknown user still pays one comparison")

	_, wrongErr := f.svc.Login(context.Background(), "alice", "wrongpass")

	assert.ErrorIs(t, unknownErr, ErrUnauthenticated)
	assert.ErrorIs(t, wrongErr, ErrUnauthenticated)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.Equal(t, 2, f.recorder.count("bad_credentials"))
}

func TestRegisterDuplicate(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "alice", "alice@example.com", "s3cretpass")

	_, err := f.svc.Register(context.Background(), NewUser{Username: "alice", Email: "other@example.com", Password: "s3cretpass"})
	var dup *DuplicateUserError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "User with username 'alice' or email 'other@example.com' already registered", dup.Error())

	_, err = f.svc.Register(context.Background(), NewUser{Username: "bob", Email: "alice@example.com", Password: "s3cretpass"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "bob", dup.Username)

	assert.Equal(t, 1, f.users.UserCount())
}

func TestResolveIdentityCollapsesKinds(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.svc.Tokens().Issue(map[string]any{"sub": "alice"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.svc.ResolveIdentity(token)
	assert.Equal(t, ErrUnauthenticated, err)
	assert.Equal(t, 1, f.recorder.count("expired"))

	_, err = f.svc.ResolveIdentity("garbage")
	assert.Equal(t, ErrUnauthenticated, err)
	assert.Equal(t, 1, f.recorder.count("invalid_signature"))

	noSub, err := f.svc.Tokens().Issue(map[string]any{"role": "x"})
	require.NoError(t, err)
	_, err = f.svc.ResolveIdentity(noSub)
	assert.Equal(t, ErrUnauthenticated, err)
	assert.Equal(t, 1, f.recorder.count("invalid_claims"))

	_, err = f.svc.ResolveBearer("Token abc")
	assert.Equal(t, ErrUnauthenticated, err)
	assert.Equal(t, 1, f.recorder.count("missing_credential"))
}

func TestResolveIdentityLogsKindAtDebug(t *testing.T) {
	log, hook := loggertest.New()
	tokens := newTestTokens(t, nil)
	svc, err := NewService(tokens, store.NewMemoryStore(), NewBcryptHasher(4), log)
	require.NoError(t, err)

	_, err = svc.ResolveIdentity("garbage")
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "invalid_signature", entry.Data["kind"])
}

// gatedStore holds every UserExists call until release is closed so two
// registrations can pass the existence check together.
type gatedStore struct {
	*store.MemoryStore
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	exists, err := g.MemoryStore.UserExists(ctx, username, email)
	g.arrived <- struct{}{}
	<-g.release
	return exists, err
}

func TestConcurrentRegistrationRace(t *testing.T) {
	gs := &gatedStore{
		MemoryStore: store.NewMemoryStore(),
		arrived:     make(chan struct{}, 2),
		release:     make(chan struct{}),
	}
	svc, err := NewService(newTestTokens(t, nil), gs, NewBcryptHasher(4), logger.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), NewUser{Username: "alice", Email: "alice@example.com", Password: "s3cretpass"})
		}(i)
	}
	<-gs.arrived
	<-gs.arrived
	close(gs.release)
	wg.Wait()

	// Both pass the check: uniqueness is not enforced at insert time.
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 2, gs.UserCount())
}

type failingUsers struct{ store.MemoryStore }

func (f *failingUsers) UserExists(context.Context, string, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (f *failingUsers) FindUserByUsername(context.Context, string) (*store.User, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailuresAreNotAuthErrors(t *testing.T) {
	svc, err := NewService(newTestTokens(t, nil), &failingUsers{}, NewBcryptHasher(4), logger.NewNop())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), NewUser{Username: "alice", Email: "a@example.com", Password: "s3cretpass"})
	require.Error(t, err)
	var dup *DuplicateUserError
	assert.False(t, errors.As(err, &dup))

	_, err = svc.Login(context.Background(), "alice", "s3cretpass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}
