package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/identity"
	"neuracall-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory identity.Provider whose CurrentSession
// latency is controllable.
type fakeProvider struct {
	mu        sync.Mutex
	session   *identity.RawSession
	err       error
	delay     time.Duration
	listeners []identity.ChangeFunc
	signOuts  int
}

func (f *fakeProvider) CurrentSession(ctx context.Context) (*identity.RawSession, error) {
	f.mu.Lock()
	delay, session, err := f.delay, f.session, f.err
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return session, err
}

func (f *fakeProvider) OnSessionChange(fn identity.ChangeFunc) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.RawSession, error) {
	f.mu.Lock()
	session := f.session
	f.mu.Unlock()
	f.push(session)
	return session, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	f.push(nil)
	return nil
}

func (f *fakeProvider) push(raw *identity.RawSession) {
	f.mu.Lock()
	listeners := append([]identity.ChangeFunc(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(raw)
	}
}

// slowUserDB delays user lookups per user id so tests can make one
// enrichment outrun another.
type slowUserDB struct {
	*database.MemoryDatabase
	mu     sync.Mutex
	delays map[string]time.Duration
}

func newSlowUserDB() *slowUserDB {
	return &slowUserDB{
		MemoryDatabase: database.NewMemoryDatabase(),
		delays:         make(map[string]time.Duration),
	}
}

func (s *slowUserDB) setDelay(userID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[userID] = d
}

func (s *slowUserDB) GetUserByID(id string) (*models.User, error) {
	s.mu.Lock()
	d := s.delays[id]
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	return s.MemoryDatabase.GetUserByID(id)
}

func seedUserWithTenant(t *testing.T, db database.DatabaseInterface, userID, email, tenantName string, role models.Role) string {
	t.Helper()
	require.NoError(t, db.CreateUser(&models.User{ID: userID, Email: email, Name: "Test " + userID}))
	tenant := &models.Tenant{Name: tenantName, OwnerID: userID}
	require.NoError(t, db.CreateTenant(tenant))
	if role != models.RoleAdmin {
		require.NoError(t, db.AddTenantMember(&models.TenantMembership{
			TenantID: tenant.ID, UserID: userID, Role: role,
		}))
	}
	return tenant.ID
}

func TestInitializeTimeoutContinuesSignedOut(t *testing.T) {
	provider := &fakeProvider{
		session: &identity.RawSession{UserID: "u1", Email: "slow@example.com"},
		delay:   200 * time.Millisecond,
	}
	r := NewResolver(Options{
		Provider: provider,
		DB:       database.NewMemoryDatabase(),
		Timeout:  20 * time.Millisecond,
	})
	defer r.Close()

	states, unsubscribe := r.Subscribe()
	defer unsubscribe()

	initial := <-states
	assert.True(t, initial.Loading)

	r.Initialize(context.Background())

	resolved := <-states
	assert.False(t, resolved.Loading)
	assert.Nil(t, resolved.Session, "timeout must degrade to signed out")

	// The late provider result must not resurrect the session, and
	// Loading must not flip again.
	time.Sleep(250 * time.Millisecond)
	final := r.Current()
	assert.False(t, final.Loading)
	assert.Nil(t, final.Session)

	select {
	case extra, ok := <-states:
		if ok {
			t.Fatalf("unexpected extra state published after timeout: %+v", extra)
		}
	default:
	}
}

func TestInitializeResolvesAndEnriches(t *testing.T) {
	db := database.NewMemoryDatabase()
	tenantID := seedUserWithTenant(t, db, "u1", "ana@example.com", "Acme", models.RoleAdmin)

	provider := &fakeProvider{
		session: &identity.RawSession{UserID: "u1", Email: "ana@example.com"},
	}
	r := NewResolver(Options{Provider: provider, DB: db, Timeout: time.Second})
	defer r.Close()

	r.Initialize(context.Background())

	state := r.Current()
	assert.False(t, state.Loading)
	require.NotNil(t, state.Session)
	assert.Equal(t, "u1", state.Session.UserID)
	assert.Equal(t, tenantID, state.Session.TenantID)
	assert.Equal(t, models.RoleAdmin, state.Session.Role)
	assert.Equal(t, "Acme", state.Session.TenantName)
}

func TestInitializeWithoutMembershipIsValid(t *testing.T) {
	db := database.NewMemoryDatabase()
	require.NoError(t, db.CreateUser(&models.User{ID: "u2", Email: "new@example.com"}))

	provider := &fakeProvider{
		session: &identity.RawSession{UserID: "u2", Email: "new@example.com"},
	}
	r := NewResolver(Options{Provider: provider, DB: db, Timeout: time.Second})
	defer r.Close()

	r.Initialize(context.Background())

	state := r.Current()
	require.NotNil(t, state.Session, "no membership is a valid signed-in state")
	assert.Empty(t, state.Session.TenantID)
	assert.Empty(t, state.Session.Role)
}

func TestStaleResolutionSuppressed(t *testing.T) {
	db := newSlowUserDB()
	seedUserWithTenant(t, db, "userA", "a@example.com", "TenantA", models.RoleAdmin)
	seedUserWithTenant(t, db, "userB", "b@example.com", "TenantB", models.RoleAdmin)
	db.setDelay("userA", 150*time.Millisecond)

	provider := &fakeProvider{}
	r := NewResolver(Options{Provider: provider, DB: db, Timeout: time.Second})
	defer r.Close()

	// A's enrichment is slow, B's is fast; B is the newer event and
	// must determine the final state even though A finishes later.
	provider.push(&identity.RawSession{UserID: "userA", Email: "a@example.com"})
	provider.push(&identity.RawSession{UserID: "userB", Email: "b@example.com"})

	require.Eventually(t, func() bool {
		s := r.Current()
		return s.Session != nil && s.Session.UserID == "userB"
	}, time.Second, 10*time.Millisecond)

	// Wait out A's enrichment and confirm it was dropped.
	time.Sleep(250 * time.Millisecond)
	final := r.Current()
	require.NotNil(t, final.Session)
	assert.Equal(t, "userB", final.Session.UserID)
	assert.Equal(t, "TenantB", final.Session.TenantName)
}

func TestSignOutClearsImmediately(t *testing.T) {
	db := database.NewMemoryDatabase()
	seedUserWithTenant(t, db, "u1", "ana@example.com", "Acme", models.RoleAdmin)

	provider := &fakeProvider{
		session: &identity.RawSession{UserID: "u1", Email: "ana@example.com"},
	}
	r := NewResolver(Options{Provider: provider, DB: db, Timeout: time.Second})
	defer r.Close()

	r.Initialize(context.Background())
	require.NotNil(t, r.Current().Session)

	r.SignOut(context.Background())
	assert.Nil(t, r.Current().Session)
	assert.False(t, r.Current().Loading)
	assert.Equal(t, 1, provider.signOuts)
}

func TestFounderFlagFromAllowList(t *testing.T) {
	db := database.NewMemoryDatabase()
	seedUserWithTenant(t, db, "u1", "marc@neuracall.com", "Neuracall", models.RoleMember)

	provider := &fakeProvider{
		session: &identity.RawSession{UserID: "u1", Email: "marc@neuracall.com"},
	}
	r := NewResolver(Options{
		Provider:  provider,
		DB:        db,
		Timeout:   time.Second,
		IsFounder: func(email string) bool { return email == "marc@neuracall.com" },
	})
	defer r.Close()

	r.Initialize(context.Background())
	require.NotNil(t, r.Current().Session)
	assert.True(t, r.Current().Session.Founder)
}
