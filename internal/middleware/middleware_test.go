package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cablenet/internal/auth"
	"cablenet/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVersions struct {
	current int
	err     error
}

func (f fakeVersions) CheckTokenVersion(_ context.Context, _ string, v int) (bool, error) {
	return v == f.current, f.err
}

func newJWT(t *testing.T) *auth.JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return auth.NewJWTManagerFromKeys(key, &key.PublicKey, "cablenet")
}

func protected(mw *AuthMiddleware) http.Handler {
	return mw.JWTAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(id.String()))
	}))
}

func call(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth_AttachesUser(t *testing.T) {
	jwtMgr := newJWT(t)
	userID := uuid.New()
	pair, err := jwtMgr.GenerateTokenPair(userID.String(), time.Minute, time.Hour, 3, "local", []string{"admin"})
	require.NoError(t, err)

	h := protected(NewAuthMiddleware(jwtMgr, fakeVersions{current: 3}, zap.NewNop()))
	rec := call(h, "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Body.String())
}

func TestJWTAuth_Rejects(t *testing.T) {
	jwtMgr := newJWT(t)
	userID := uuid.New().String()
	pair, err := jwtMgr.GenerateTokenPair(userID, time.Minute, time.Hour, 1, "local", nil)
	require.NoError(t, err)

	h := protected(NewAuthMiddleware(jwtMgr, fakeVersions{current: 1}, zap.NewNop()))

	cases := map[string]string{
		"missing header":  "",
		"no bearer":       pair.AccessToken,
		"garbage":         "Bearer nope",
		"refresh as auth": "Bearer " + pair.RefreshToken,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(h, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}

	revoked := protected(NewAuthMiddleware(jwtMgr, fakeVersions{current: 2}, zap.NewNop()))
	assert.Equal(t, http.StatusUnauthorized, call(revoked, "Bearer "+pair.AccessToken).Code)

	broken := protected(NewAuthMiddleware(jwtMgr, fakeVersions{current: 1, err: errors.New("db down")}, zap.NewNop()))
	assert.Equal(t, http.StatusInternalServerError, call(broken, "Bearer "+pair.AccessToken).Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), uuid.New(), "local", []string{"user", "admin"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), uuid.New(), "local", []string{"user"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAccessLog_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(AccessLog(zap.NewNop(), m))
	r.Get("/locations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/locations/abc", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.True(t, strings.Contains(body, `path="/locations/{id}"`), body)
	assert.Contains(t, body, `status="202"`)
}
