package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tokoberas/tokoberas/internal/shared"
)

type fakeSource struct {
	perms map[int64][]string
	err   error
}

func (f *fakeSource) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.perms[userID], nil
}

func testMiddleware(t *testing.T, source PermissionSource) Middleware {
	t.Helper()
	return Middleware{
		Service: source,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func requestAsUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "tb_session", "session-secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/sales", nil)
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyAllowsMatchingPermission(t *testing.T) {
	mw := testMiddleware(t, &fakeSource{perms: map[int64][]string{5: {"sales.view"}}})

	rec := httptest.NewRecorder()
	mw.RequireAny("sales.view", "sales.edit")(okHandler()).ServeHTTP(rec, requestAsUser(t, "5"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyRejectsMissingPermission(t *testing.T) {
	mw := testMiddleware(t, &fakeSource{perms: map[int64][]string{5: {"catalog.view"}}})

	rec := httptest.NewRecorder()
	mw.RequireAny("sales.edit")(okHandler()).ServeHTTP(rec, requestAsUser(t, "5"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	mw := testMiddleware(t, &fakeSource{perms: map[int64][]string{5: {"payroll.view", "payroll.edit"}}})

	rec := httptest.NewRecorder()
	mw.RequireAll("payroll.view", "payroll.approve")(okHandler()).ServeHTTP(rec, requestAsUser(t, "5"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireAll("payroll.view", "payroll.edit")(okHandler()).ServeHTTP(rec, requestAsUser(t, "5"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAnonymousSessionIsForbidden(t *testing.T) {
	mw := testMiddleware(t, &fakeSource{})

	rec := httptest.NewRecorder()
	mw.RequireAny("sales.view")(okHandler()).ServeHTTP(rec, requestAsUser(t, ""))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPermissionLookupFailureIsServerError(t *testing.T) {
	mw := testMiddleware(t, &fakeSource{err: errors.New("pg down")})

	rec := httptest.NewRecorder()
	mw.RequireAny("sales.view")(okHandler()).ServeHTTP(rec, requestAsUser(t, "5"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPermissionMatchingIsCaseInsensitive(t *testing.T) {
	mw := testMiddleware(t, &fakeSource{perms: map[int64][]string{5: {"Sales.View"}}})

	rec := httptest.NewRecorder()
	mw.RequireAny("SALES.VIEW")(okHandler()).ServeHTTP(rec, requestAsUser(t, "5"))
	require.Equal(t, http.StatusOK, rec.Code)
}
