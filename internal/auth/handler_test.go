package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/layerworks/layerworks/internal/auth"
	"github.com/layerworks/layerworks/internal/shared"
	_ "github.com/layerworks/layerworks/internal/testing/guard"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type authHarness struct {
	router   chi.Router
	sessions *shared.SessionManager
	repo     *stubRepo
}

func newAuthHarness(t *testing.T, active bool) *authHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")

	hashed, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: 4, Email: "staff@layerworks.test", PasswordHash: hashed, Role: shared.RoleStaff, IsActive: active}}
	router := chi.NewRouter()
	router.Route("/auth", auth.NewHandler(nil, auth.NewService(repo), sessionManager, csrfManager).MountRoutes)
	return &authHarness{router: router, sessions: sessionManager, repo: repo}
}

// serve runs one request through the handler with a committed session and
// returns the recorder plus the session cookie for follow-up calls.
func (h *authHarness) serve(t *testing.T, method, path, body string, cookie *http.Cookie) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	require.NoError(t, h.sessions.Commit(ctx, rr, req, sess))

	for _, c := range rr.Result().Cookies() {
		if c.Name == h.sessions.CookieName() {
			return rr, c
		}
	}
	return rr, cookie
}

func TestLoginStoresPrincipalInSession(t *testing.T) {
	h := newAuthHarness(t, true)

	rr, cookie := h.serve(t, http.MethodPost, "/auth/login", `{"email":"staff@layerworks.test","password":"correct-horse"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		User      auth.User `json:"user"`
		CSRFToken string    `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, shared.RoleStaff, body.User.Role)
	require.NotEmpty(t, body.CSRFToken)
	require.NotContains(t, rr.Body.String(), "password_hash")
	require.Len(t, h.repo.sessions, 1)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "4", sess.User())
	require.Equal(t, shared.RoleStaff, sess.Role())

	rr, _ = h.serve(t, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "staff@layerworks.test")
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newAuthHarness(t, true)

	rr, _ := h.serve(t, http.MethodPost, "/auth/login", `{"email":"staff@layerworks.test","password":"wrong-password"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = h.serve(t, http.MethodPost, "/auth/login", `{"email":"nobody","password":"short"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Email")
}

func TestInactiveUserCannotLogin(t *testing.T) {
	h := newAuthHarness(t, false)

	rr, _ := h.serve(t, http.MethodPost, "/auth/login", `{"email":"staff@layerworks.test","password":"correct-horse"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newAuthHarness(t, true)

	_, cookie := h.serve(t, http.MethodPost, "/auth/login", `{"email":"staff@layerworks.test","password":"correct-horse"}`, nil)
	rr, _ := h.serve(t, http.MethodPost, "/auth/logout", "", cookie)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, h.repo.sessions)

	rr, _ = h.serve(t, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCSRFEndpointIsStablePerSession(t *testing.T) {
	h := newAuthHarness(t, true)

	rr, cookie := h.serve(t, http.MethodGet, "/auth/csrf", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := rr.Body.String()

	rr, _ = h.serve(t, http.MethodGet, "/auth/csrf", "", cookie)
	require.Equal(t, first, rr.Body.String())
}
