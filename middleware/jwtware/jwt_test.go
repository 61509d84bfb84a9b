package jwtware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/middleware/jwtware"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubLookup struct {
	principals map[string]*auth.Principal
	err        error
}

func (s *stubLookup) FindByEmail(_ context.Context, email string) (*auth.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.principals[email]; ok {
		return p, nil
	}
	return nil, auth.ErrPrincipalNotFound
}

type fixture struct {
	codec  *auth.TokenCodec
	lookup *stubLookup
	user   *auth.Principal
	admin  *auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := auth.NewTokenCodec("middleware-secret")
	require.NoError(t, err)

	user := &auth.Principal{ID: uuid.New(), Email: "user@example.com", Roles: []auth.Role{auth.RoleUser}, Active: true}
	admin := &auth.Principal{ID: uuid.New(), Email: "admin@example.com", Roles: []auth.Role{auth.RoleAdmin}, Active: true}

	return &fixture{
		codec: codec,
		lookup: &stubLookup{principals: map[string]*auth.Principal{
			user.Email:  user,
			admin.Email: admin,
		}},
		user:  user,
		admin: admin,
	}
}

func (f *fixture) token(t *testing.T, p *auth.Principal, role auth.Role) string {
	t.Helper()
	tok, err := f.codec.Issue(p.Email, string(role), now, 3600)
	require.NoError(t, err)
	return tok
}

func (f *fixture) config() jwtware.Config {
	return jwtware.Config{
		Codec:      f.codec,
		Directory:  f.lookup,
		AuthScheme: "Bearer",
		Clock:      func() time.Time { return now },
	}
}

func (f *fixture) app(cfg jwtware.Config, policy *auth.Policy) *fiber.App {
	app := fiber.New()
	app.Use(jwtware.New(cfg))
	if policy != nil {
		app.Use(jwtware.Authorize(policy, cfg))
	}

	whoami := func(c *fiber.Ctx) error {
		ac := jwtware.FromContext(c)
		std, ok := auth.FromContext(c.UserContext())
		body := fiber.Map{
			"authenticated": ac.IsAuthenticated(),
			"role":          string(ac.Role),
			"std":           ok && std.IsAuthenticated() == ac.IsAuthenticated(),
		}
		if ac.Principal != nil {
			body["email"] = ac.Principal.Email
		}
		return c.JSON(body)
	}
	app.Get("/api/v1/perfumes", whoami)
	app.Get("/api/v1/users", whoami)
	app.Get("/api/v1/admin/users", whoami)
	return app
}

func do(t *testing.T, app *fiber.App, path, header string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return res.StatusCode, body
}

func TestNew_AbsentHeaderIsAnonymous(t *testing.T) {
	f := newFixture(t)
	app := f.app(f.config(), nil)

	status, body := do(t, app, "/api/v1/perfumes", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, true, body["std"])
}

func TestNew_ValidTokenAttachesPrincipal(t *testing.T) {
	f := newFixture(t)
	app := f.app(f.config(), nil)

	status, body := do(t, app, "/api/v1/users", "Bearer "+f.token(t, f.user, auth.RoleUser))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "USER", body["role"])
	assert.Equal(t, "user@example.com", body["email"])
	assert.Equal(t, true, body["std"])
}

func TestNew_RawHeaderWithoutScheme(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.AuthScheme = ""
	app := f.app(cfg, nil)

	status, body := do(t, app, "/api/v1/users", f.token(t, f.user, auth.RoleUser))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
}

func TestNew_CustomHeaderLookup(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.TokenLookup = "header:X-Auth-Token"
	cfg.AuthScheme = ""

	app := f.app(cfg, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("X-Auth-Token", f.token(t, f.user, auth.RoleUser))
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestNew_RejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	other, err := auth.NewTokenCodec("another-secret")
	require.NoError(t, err)

	forged, err := other.Issue(f.user.Email, "USER", now, 3600)
	require.NoError(t, err)
	expired, err := f.codec.Issue(f.user.Email, "USER", now.Add(-2*time.Hour), 3600)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		textCode string
	}{
		{"garbage", "Bearer not-a-token", auth.TextCodeTokenMalformed},
		{"wrong key", "Bearer " + forged, auth.TextCodeTokenInvalidSignature},
		{"expired", "Bearer " + expired, auth.TextCodeTokenExpired},
	}

	app := f.app(f.config(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// public route: a present but invalid token is still rejected
			status, body := do(t, app, "/api/v1/perfumes", tt.header)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tt.textCode, body["text_code"])
		})
	}
}

func TestNew_UnknownSubject(t *testing.T) {
	f := newFixture(t)
	ghost := &auth.Principal{ID: uuid.New(), Email: "ghost@example.com"}
	app := f.app(f.config(), nil)

	status, body := do(t, app, "/api/v1/users", "Bearer "+f.token(t, ghost, auth.RoleUser))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeUnknownSubject, body["text_code"])
}

func TestNew_DirectoryOutage(t *testing.T) {
	f := newFixture(t)
	f.lookup.err = auth.Unavailable("find by id", errors.New("connection refused"))
	app := f.app(f.config(), nil)

	status, body := do(t, app, "/api/v1/users", "Bearer "+f.token(t, f.user, auth.RoleUser))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, auth.TextCodeDirectoryUnavailable, body["text_code"])
}

func TestNew_FilterSkips(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Filter = func(c *fiber.Ctx) bool { return c.Path() == "/api/v1/perfumes" }
	app := f.app(cfg, nil)

	status, _ := do(t, app, "/api/v1/perfumes", "Bearer broken")
	assert.Equal(t, http.StatusOK, status)
}

func TestNew_ValidationListener(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.ValidationListeners = []jwtware.ValidationListener{
		func(_ *fiber.Ctx, ac auth.AuthContext) error {
			if ac.Principal.Email == "user@example.com" {
				return auth.ErrForbidden
			}
			return nil
		},
	}
	app := f.app(cfg, nil)

	status, _ := do(t, app, "/api/v1/users", "Bearer "+f.token(t, f.user, auth.RoleUser))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, "/api/v1/users", "Bearer "+f.token(t, f.admin, auth.RoleAdmin))
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthorize_RoleGating(t *testing.T) {
	f := newFixture(t)
	app := f.app(f.config(), auth.DefaultPolicy())

	userToken := "Bearer " + f.token(t, f.user, auth.RoleUser)
	adminToken := "Bearer " + f.token(t, f.admin, auth.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"public anonymous", "/api/v1/perfumes", "", http.StatusOK},
		{"authenticated anonymous", "/api/v1/users", "", http.StatusUnauthorized},
		{"authenticated user", "/api/v1/users", userToken, http.StatusOK},
		{"admin anonymous", "/api/v1/admin/users", "", http.StatusUnauthorized},
		{"admin as user", "/api/v1/admin/users", userToken, http.StatusForbidden},
		{"admin as admin", "/api/v1/admin/users", adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, app, tt.path, tt.header)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestAuthorize_RoleComesFromToken(t *testing.T) {
	f := newFixture(t)
	app := f.app(f.config(), auth.DefaultPolicy())

	// stored principal is ADMIN but the token only carries USER
	status, body := do(t, app, "/api/v1/admin/users", "Bearer "+f.token(t, f.admin, auth.RoleUser))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, auth.TextCodeForbidden, body["text_code"])
}

func TestAuthorize_RecordsAccessDenied(t *testing.T) {
	f := newFixture(t)
	var events []auth.ActivityEvent
	cfg := f.config()
	cfg.ActivitySink = auth.ActivitySinkFunc(func(_ context.Context, e auth.ActivityEvent) error {
		events = append(events, e)
		return nil
	})
	app := f.app(cfg, auth.DefaultPolicy())

	status, _ := do(t, app, "/api/v1/admin/users", "Bearer "+f.token(t, f.user, auth.RoleUser))
	require.Equal(t, http.StatusForbidden, status)
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventAccessDenied, events[0].EventType)
	assert.Equal(t, f.user.ID.String(), events[0].UserID)
	assert.Equal(t, "forbidden", events[0].Metadata["decision"])
}

func TestErrorBody(t *testing.T) {
	status, body := jwtware.ErrorBody(auth.ErrTooManyLoginAttempts)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, auth.TextCodeTooManyAttempts, body["text_code"])

	status, _ = jwtware.ErrorBody(fiber.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = jwtware.ErrorBody(errors.New("boom"))
	assert.Equal(t, http.StatusUnauthorized, status)
}
