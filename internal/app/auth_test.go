package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"SolarFeed/internal/model"
)

const aliceCreds = `{"email":"Alice@Example.com","password":"s3cret-pass","name":"Alice"}`

// send is do with extra request setup, e.g. cookies.
func send(t *testing.T, a *App, method, path, body string, setup func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func sessionCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", sessionCookie)
	return nil
}

func login(t *testing.T, a *App) *http.Cookie {
	t.Helper()
	require.Equal(t, http.StatusCreated, do(t, a, http.MethodPost, "/api/auth/register", aliceCreds).Code)
	rec := do(t, a, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	return sessionCookieOf(t, rec)
}

func TestRegister(t *testing.T) {
	a := newTestApp(t)

	rec := do(t, a, http.MethodPost, "/api/auth/register", aliceCreds)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, map[string]any{"id": 1.0, "email": "alice@example.com", "name": "Alice"}, body["user"])

	u, ok, err := a.store.UserByEmail("alice@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
	assert.NotContains(t, rec.Body.String(), "password")

	dup := do(t, a, http.MethodPost, "/api/auth/register", `{"email":" ALICE@example.com ","password":"other"}`)
	assert.Equal(t, http.StatusConflict, dup.Code)
}

func TestRegister_Rejects(t *testing.T) {
	a := newTestApp(t)
	for name, body := range map[string]string{
		"empty":         "",
		"not json":      "email=a@b.c",
		"no password":   `{"email":"a@b.c"}`,
		"no email":      `{"password":"x"}`,
		"long password": `{"email":"a@b.c","password":"` + strings.Repeat("p", 80) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, a, http.MethodPost, "/api/auth/register", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, decode(t, rec)["ok"])
		})
	}
}

func TestLogin(t *testing.T) {
	a := newTestApp(t)
	require.Equal(t, http.StatusCreated, do(t, a, http.MethodPost, "/api/auth/register", aliceCreds).Code)

	assert.Equal(t, http.StatusUnauthorized,
		do(t, a, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(t, a, http.MethodPost, "/api/auth/login", `{"email":"bob@example.com","password":"s3cret-pass"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, a, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com"}`).Code)

	rec := do(t, a, http.MethodPost, "/api/auth/login", `{"email":"ALICE@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	c := sessionCookieOf(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, fixedNow.Add(24*time.Hour).Unix(), c.Expires.Unix())
	assert.Equal(t, c.Value, decode(t, rec)["token"])
}

func TestSession(t *testing.T) {
	a := newTestApp(t)
	cookie := login(t, a)

	rec := send(t, a, http.MethodGet, "/api/auth/session", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "1", "email": "alice@example.com"}, decode(t, rec)["user"])

	rec = send(t, a, http.MethodGet, "/api/auth/session", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+cookie.Value)
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, a, http.MethodGet, "/api/auth/session", "").Code)
}

func TestSession_RejectsBadTokens(t *testing.T) {
	a := newTestApp(t)
	cookie := login(t, a)

	other := newTestApp(t)
	foreign := login(t, other)

	tests := map[string]string{
		"garbage":        "not-a-token",
		"tampered":       cookie.Value + "x",
		"foreign secret": foreign.Value,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			rec := send(t, a, http.MethodGet, "/api/auth/session", "", func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
			})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, decode(t, rec)["ok"])
		})
	}

	t.Run("expired", func(t *testing.T) {
		a.now = func() time.Time { return fixedNow.Add(25 * time.Hour) }
		t.Cleanup(func() { a.now = func() time.Time { return fixedNow } })
		rec := send(t, a, http.MethodGet, "/api/auth/session", "", func(r *http.Request) { r.AddCookie(cookie) })
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogout_ClearsCookie(t *testing.T) {
	a := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c := sessionCookieOf(t, rec)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestProtectAPI(t *testing.T) {
	a := newTestAppWith(t, func(c *model.IngestConfig) {
		c.ProtectAPI = true
		c.AuthSecret = "test-secret"
	})
	require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/ingest", `{"power":1}`).Code)

	for _, path := range []string{"/api/history", "/api/export", "/api/forecast"} {
		assert.Equal(t, http.StatusUnauthorized, do(t, a, http.MethodGet, path, "").Code, path)
	}
	assert.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/latest", "").Code)

	cookie := login(t, a)
	rec := send(t, a, http.MethodGet, "/api/history", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)
}

func TestOpenAPIByDefault(t *testing.T) {
	a := newTestApp(t)
	assert.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/history", "").Code)
}
