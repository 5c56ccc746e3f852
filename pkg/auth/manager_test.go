package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"accesos/pkg/audit"
	"accesos/pkg/auth"
	"accesos/pkg/backend"
	"accesos/pkg/claims"
	"accesos/pkg/role"
	"accesos/pkg/tokenstore"
	"accesos/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	signingKey = []byte("test-secret")
	adminUser  = claims.User{ID: 1, Username: "root", Rol: claims.Role{ID: role.Admin, Name: "ADMIN"}}
	opUser     = claims.User{ID: 3, Username: "bob", Rol: claims.Role{ID: role.Operator, Name: "OPERADOR"}}
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

type navigations struct {
	mu    sync.Mutex
	paths []string
}

func (n *navigations) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navigations) count(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, p := range n.paths {
		if p == path {
			c++
		}
	}
	return c
}

type events struct {
	mu    sync.Mutex
	kinds []audit.Kind
}

func (e *events) Record(_ context.Context, ev audit.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, ev.Kind)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	manager *auth.Manager
	authn   *mockAuthenticator
	store   *tokenstore.MemoryStore
	nav     *navigations
	events  *events
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		authn:  new(mockAuthenticator),
		store:  tokenstore.NewMemoryStore(),
		nav:    &navigations{},
		events: &events{},
		clock:  &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}

	m, err := auth.NewManager(auth.Config{
		Authenticator: f.authn,
		Store:         f.store,
		Validator:     validator.New(validator.WithClock(f.clock.Now)),
		Navigator:     f.nav,
		Recorder:      f.events,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func (f *fixture) token(t *testing.T, u claims.User, ttl time.Duration) string {
	t.Helper()
	tok, err := claims.Sign(signingKey, claims.New(u, f.clock.Now().Add(ttl)))
	require.NoError(t, err)
	return tok
}

func (f *fixture) login(t *testing.T, u claims.User) {
	t.Helper()
	f.authn.On("Login", mock.Anything, u.Username, "pw").Return(f.token(t, u, time.Hour), nil).Once()
	require.True(t, f.manager.Login(context.Background(), u.Username, "pw").Success)
}

func (f *fixture) stored(t *testing.T) *tokenstore.Entry {
	t.Helper()
	entry, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return entry
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	_, err := auth.NewManager(auth.Config{Store: tokenstore.NewMemoryStore()})
	assert.ErrorIs(t, err, auth.ErrNoAuthenticator)

	_, err = auth.NewManager(auth.Config{Authenticator: new(mockAuthenticator)})
	assert.ErrorIs(t, err, auth.ErrNoStore)
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, auth.Initializing, f.manager.State())
		assert.False(t, f.manager.IsAuthenticated())

		assert.Equal(t, auth.Anonymous, f.manager.Init(ctx))
		assert.Empty(t, f.nav.paths)
	})

	t.Run("valid stored session", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, f.token(t, opUser, time.Hour), opUser))

		assert.Equal(t, auth.Authenticated, f.manager.Init(ctx))
		assert.True(t, f.manager.IsAuthenticated())
		u, ok := f.manager.User()
		assert.True(t, ok)
		assert.Equal(t, opUser, u)
		assert.Equal(t, []audit.Kind{audit.SessionRestored}, f.events.kinds)
	})

	t.Run("expired stored session is cleared", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, f.token(t, opUser, -time.Minute), opUser))

		assert.Equal(t, auth.Anonymous, f.manager.Init(ctx))
		assert.Nil(t, f.stored(t))
		assert.False(t, f.manager.IsAuthenticated())
		assert.Equal(t, []audit.Kind{audit.SessionExpired}, f.events.kinds)
	})

	t.Run("malformed stored token is cleared", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "garbage", opUser))

		assert.Equal(t, auth.Anonymous, f.manager.Init(ctx))
		assert.Nil(t, f.stored(t))
	})

	t.Run("malformed stored user is cleared", func(t *testing.T) {
		f := newFixture(t)
		f.store.Set(tokenstore.KeyToken, f.token(t, opUser, time.Hour))
		f.store.Set(tokenstore.KeyUser, "{oops")

		assert.Equal(t, auth.Anonymous, f.manager.Init(ctx))
		f.store.Set(tokenstore.KeyUser, `{"id":3}`)
		assert.Nil(t, f.stored(t), "token key was cleared too")
	})

	t.Run("identity comes from the token", func(t *testing.T) {
		f := newFixture(t)
		tampered := opUser
		tampered.Rol = claims.Role{ID: role.Admin, Name: "ADMIN"}
		require.NoError(t, f.store.Save(ctx, f.token(t, opUser, time.Hour), tampered))

		f.manager.Init(ctx)
		assert.False(t, f.manager.HasPermission(role.Admin))
		assert.Equal(t, "OPERADOR", f.manager.RoleName())
	})

	t.Run("second init is a no-op", func(t *testing.T) {
		f := newFixture(t)
		f.manager.Init(ctx)
		require.NoError(t, f.store.Save(ctx, f.token(t, opUser, time.Hour), opUser))

		assert.Equal(t, auth.Anonymous, f.manager.Init(ctx))
	})
}

func TestLoginAdmin(t *testing.T) {
	f := newFixture(t)
	f.manager.Init(context.Background())

	f.login(t, adminUser)

	assert.Equal(t, auth.Authenticated, f.manager.State())
	assert.True(t, f.manager.IsAuthenticated())
	assert.True(t, f.manager.HasPermission(role.Admin))
	assert.True(t, f.manager.HasPermission(role.Operator))
	assert.True(t, f.manager.HasPermission(role.Auditor))
	assert.Equal(t, "ADMIN", f.manager.RoleName())
	assert.Equal(t, 1, f.nav.count(auth.LandingPath))

	entry := f.stored(t)
	require.NotNil(t, entry)
	assert.Equal(t, adminUser, entry.User)
	tok, ok := f.manager.Token()
	assert.True(t, ok)
	assert.Equal(t, entry.Token, tok)
}

func TestLoginOperator(t *testing.T) {
	f := newFixture(t)
	f.manager.Init(context.Background())

	f.login(t, opUser)

	assert.False(t, f.manager.HasPermission(role.Admin))
	assert.False(t, f.manager.HasPermission(role.Supervisor))
	assert.True(t, f.manager.HasPermission(role.Operator))
	assert.True(t, f.manager.HasPermission(role.Auditor))
	assert.True(t, role.IsOperatorOrAbove(f.manager))
	assert.False(t, role.IsAdmin(f.manager))
}

func TestHasPermissionMatrix(t *testing.T) {
	for r := 1; r <= 4; r++ {
		f := newFixture(t)
		f.manager.Init(context.Background())
		for k := 1; k <= 4; k++ {
			assert.False(t, f.manager.HasPermission(k), "anonymous r=%d k=%d", r, k)
		}

		f.login(t, claims.User{ID: int64(r), Username: "u", Rol: claims.Role{ID: r, Name: role.Name(r)}})
		for k := 0; k <= 5; k++ {
			assert.Equal(t, r <= k, f.manager.HasPermission(k), "r=%d k=%d", r, k)
		}
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		token func(f *fixture) string
		err   error
		want  string
	}{
		{
			name: "credentials rejected",
			err:  &backend.RejectedError{Status: 401, Detail: "Credenciales inválidas"},
			want: "Credenciales inválidas",
		},
		{
			name: "network failure",
			err:  errors.Join(backend.ErrNetwork, errors.New("connection refused")),
			want: auth.MsgNetwork,
		},
		{
			name: "unexpected error",
			err:  errors.New("bad login response"),
			want: auth.MsgLoginFailed,
		},
		{
			name: "missing role",
			token: func(f *fixture) string {
				c := claims.New(opUser, f.clock.Now().Add(time.Hour))
				c.Rol = nil
				tok, _ := claims.Sign(signingKey, c)
				return tok
			},
			want: auth.MsgInvalidRole,
		},
		{
			name: "role without id",
			token: func(f *fixture) string {
				c := claims.New(opUser, f.clock.Now().Add(time.Hour))
				c.Rol = []byte(`{"nombre_rol":"OPERADOR"}`)
				tok, _ := claims.Sign(signingKey, c)
				return tok
			},
			want: auth.MsgInvalidRole,
		},
		{
			name: "expired token",
			token: func(f *fixture) string {
				tok, _ := claims.Sign(signingKey, claims.New(opUser, f.clock.Now().Add(-time.Second)))
				return tok
			},
			want: auth.MsgInvalidToken,
		},
		{
			name:  "malformed token",
			token: func(*fixture) string { return "not.a.jwt" },
			want:  auth.MsgInvalidToken,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t)
			f.manager.Init(ctx)

			tok := ""
			if test.token != nil {
				tok = test.token(f)
			}
			f.authn.On("Login", mock.Anything, "bob", "wrong").Return(tok, test.err).Once()

			res := f.manager.Login(ctx, "bob", "wrong")

			assert.Equal(t, auth.Result{Success: false, Message: test.want}, res)
			assert.Equal(t, auth.Anonymous, f.manager.State())
			assert.False(t, f.manager.IsAuthenticated())
			assert.Nil(t, f.stored(t))
			assert.Empty(t, f.nav.paths)
			assert.Equal(t, []audit.Kind{audit.LoginFailed}, f.events.kinds)
		})
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture(t)
	f.manager.Init(context.Background())

	for _, creds := range [][2]string{{"", "pw"}, {"bob", ""}, {"  ", "pw"}} {
		res := f.manager.Login(context.Background(), creds[0], creds[1])
		assert.Equal(t, auth.MsgMissingCredentials, res.Message)
	}
	f.authn.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.manager.Init(ctx)
	f.login(t, opUser)

	f.manager.Logout(ctx)

	assert.False(t, f.manager.IsAuthenticated())
	assert.False(t, f.manager.HasPermission(role.Auditor))
	assert.Equal(t, role.Unknown, f.manager.RoleName())
	assert.Nil(t, f.stored(t))
	assert.Equal(t, 1, f.nav.count(auth.LoginPath))

	f.manager.Logout(ctx)
	assert.Equal(t, auth.Anonymous, f.manager.State())
	assert.Nil(t, f.stored(t))
	assert.Equal(t, []audit.Kind{audit.LoginSucceeded, audit.Logout}, f.events.kinds)
}

func TestReportUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.manager.Init(ctx)
	f.login(t, adminUser)

	f.manager.ReportUnauthorized(ctx)

	assert.False(t, f.manager.IsAuthenticated())
	assert.False(t, f.manager.IsAuthenticated())
	assert.Nil(t, f.stored(t))
	assert.Equal(t, 1, f.nav.count(auth.LoginPath))
	assert.Equal(t, []audit.Kind{audit.LoginSucceeded, audit.ForcedLogout}, f.events.kinds)
}

func TestExpiryDuringSession(t *testing.T) {
	f := newFixture(t)
	f.manager.Init(context.Background())
	f.login(t, opUser)
	require.True(t, f.manager.IsAuthenticated())

	f.clock.Advance(time.Hour)

	assert.False(t, f.manager.IsAuthenticated())
	assert.Equal(t, auth.Anonymous, f.manager.State())
	assert.Nil(t, f.stored(t))
	assert.Equal(t, 1, f.nav.count(auth.LoginPath))
	_, ok := f.manager.Token()
	assert.False(t, ok)
	assert.Equal(t, 1, f.nav.count(auth.LoginPath))
	assert.Equal(t, []audit.Kind{audit.LoginSucceeded, audit.SessionExpired}, f.events.kinds)
}

func TestStaleLoginAfterLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.manager.Init(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	f.authn.On("Login", mock.Anything, "bob", "pw").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(f.token(t, opUser, time.Hour), nil).Once()

	done := make(chan auth.Result)
	go func() {
		done <- f.manager.Login(ctx, "bob", "pw")
	}()

	<-started
	f.manager.Logout(ctx)
	close(release)
	res := <-done

	assert.Equal(t, auth.Result{Success: false, Message: auth.MsgSuperseded}, res)
	assert.False(t, f.manager.IsAuthenticated())
	assert.Nil(t, f.stored(t))
	assert.Zero(t, f.nav.count(auth.LandingPath))
}

func TestNewerLoginWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.manager.Init(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	f.authn.On("Login", mock.Anything, "bob", "pw").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(f.token(t, opUser, time.Hour), nil).Once()

	done := make(chan auth.Result)
	go func() {
		done <- f.manager.Login(ctx, "bob", "pw")
	}()

	<-started
	f.login(t, adminUser)
	close(release)

	assert.False(t, (<-done).Success)
	u, ok := f.manager.User()
	assert.True(t, ok)
	assert.Equal(t, adminUser, u)
}

func TestNavigatorMayCallBack(t *testing.T) {
	ctx := context.Background()
	var m *auth.Manager
	var seen []bool

	m, err := auth.NewManager(auth.Config{
		Authenticator: new(mockAuthenticator),
		Store:         tokenstore.NewMemoryStore(),
		Navigator: auth.NavigatorFunc(func(string) {
			seen = append(seen, m.IsAuthenticated())
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	m.Init(ctx)
	m.Logout(ctx)

	assert.Equal(t, []bool{false}, seen)
}
