package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokoberas/tokoberas/internal/shared"
	"github.com/tokoberas/tokoberas/internal/users"
)

type fakeUserSource struct {
	user users.User
}

func (f *fakeUserSource) GetByEmail(ctx context.Context, email string) (users.User, error) {
	if !strings.EqualFold(email, f.user.Email) {
		return users.User{}, users.ErrNotFound
	}
	return f.user, nil
}

type fakeSessionRepo struct {
	created []string
	deleted []string
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	f.created = append(f.created, id)
	return nil
}

func (f *fakeSessionRepo) DeleteSession(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePermissions struct {
	perms []string
}

func (f *fakePermissions) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return f.perms, nil
}

func newTestHandler(t *testing.T) (*Handler, *shared.SessionManager, *fakeSessionRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.MinCost)
	require.NoError(t, err)
	source := &fakeUserSource{user: users.User{
		ID:           7,
		Email:        "admin@tokoberas.local",
		FullName:     "Admin Toko",
		IsActive:     true,
		PasswordHash: string(hash),
	}}

	sessions := shared.NewSessionManager(client, "tb_session", "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	repo := &fakeSessionRepo{}
	svc := NewService(source, repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, &fakePermissions{perms: []string{"catalog.view"}}, sessions, csrf)
	return h, sessions, repo
}

func requestWithSession(t *testing.T, sessions *shared.SessionManager, method, target, body string) (*http.Request, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	return req, sess
}

func TestLoginSucceedsWithValidCredentials(t *testing.T) {
	h, sessions, repo := newTestHandler(t)

	req, sess := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"admin@tokoberas.local","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	h.login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7", sess.User())
	require.Equal(t, []string{sess.ID}, repo.created)

	var body struct {
		Permissions []string `json:"permissions"`
		CSRFToken   string   `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Permissions, "catalog.view")
	require.NotEmpty(t, body.CSRFToken)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h, sessions, repo := newTestHandler(t)

	req, sess := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"admin@tokoberas.local","password":"salah12345"}`)
	rec := httptest.NewRecorder()
	h.login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
	require.Empty(t, repo.created)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	h, sessions, _ := newTestHandler(t)

	req, _ := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"tamu@tokoberas.local","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	h.login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRemovesSession(t *testing.T) {
	h, sessions, repo := newTestHandler(t)

	req, sess := requestWithSession(t, sessions, http.MethodPost, "/auth/login",
		`{"email":"admin@tokoberas.local","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	h.login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	out, _ := requestWithSession(t, sessions, http.MethodPost, "/auth/logout", "")
	out = out.WithContext(shared.ContextWithSession(out.Context(), sess))
	rec = httptest.NewRecorder()
	h.logout(rec, out)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{sess.ID}, repo.deleted)
}

func TestMeRequiresLogin(t *testing.T) {
	h, sessions, _ := newTestHandler(t)

	req, _ := requestWithSession(t, sessions, http.MethodGet, "/auth/me", "")
	rec := httptest.NewRecorder()
	h.me(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
