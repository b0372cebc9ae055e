package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/config"
	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/utils"
)

const testSecret = "middleware-secret"

func bearer(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, id, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func protectedEcho(roles ...model.Role) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(testSecret), RequireRole(roles...))
	g.GET("/whoami", func(c echo.Context) error {
		caller, _ := CallerFrom(c)
		return c.JSON(http.StatusOK, echo.Map{"id": caller.ID, "role": caller.Role.String(), "key": userKey(c)})
	})
	return e
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func Test_JWTAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	e := protectedEcho(model.RoleMember)

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/whoami", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/whoami", "Basic abc").Code)
}

func Test_JWTAuth_StoresCaller(t *testing.T) {
	e := protectedEcho(model.RoleMember)

	rec := serve(e, http.MethodGet, "/v1/whoami", bearer(t, 42, model.RoleMember))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":42,"role":"member","key":"42"}`, rec.Body.String())
}

func Test_RequireRole_ForbidsOtherRoles(t *testing.T) {
	e := protectedEcho(model.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/v1/whoami", bearer(t, 1, model.RoleMember)).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/whoami", bearer(t, 2, model.RoleAdmin)).Code)
}

func Test_Identity_AnonymousPlaceholders(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Equal(t, "anon", userKey(c))
	assert.Equal(t, "guest", roleName(c))
}

func Test_BuildRateKey_Strategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/books", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/books")
	c.Set(ctxCaller, model.Caller{ID: 7, Role: model.RoleMember})

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	assert.Equal(t, "rl:ip:10.0.0.9", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:7:route:GET /v1/books", buildRateKey(cfg, c))

	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.9:user:7:route:GET /v1/books", buildRateKey(cfg, c))
}

func Test_RetryAfterSeconds_RoundsUp(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 36, retryAfterSeconds(35_001))
	assert.Equal(t, 0, retryAfterSeconds(-5))
}

func Test_RedisMiddlewares_PassThroughWithoutClient(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil))
	e.POST("/books", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		PurgeOnWrite(config.CacheConfig{Enabled: true}, nil))
	e.GET("/books", func(c echo.Context) error { return c.String(http.StatusOK, "list") })

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/books", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/books", "").Code)
}

func Test_CachePayload_RoundTrip(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")

	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func Test_CacheKey_SeparatesPathsAndQueries(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "catalog", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/books/:id")
		return cacheKeyFrom(cfg, c)
	}

	assert.True(t, strings.HasPrefix(key("/v1/books/1"), "catalog:"))
	assert.NotEqual(t, key("/v1/books/1"), key("/v1/books/2"))
	assert.NotEqual(t, key("/v1/books/1?a=1"), key("/v1/books/1?a=2"))
	assert.Equal(t, key("/v1/books/1"), key("/v1/books/1"))
}

func Test_CaptureWriter_RespectsLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

	_, err := cw.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = cw.Write([]byte("defg"))
	require.NoError(t, err)

	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, int64(7), cw.size)
	assert.Equal(t, "abcdefg", rec.Body.String())
}

func Test_RequestLog_WritesCallerFields(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLog(log))
	g := e.Group("/v1", JWTAuth(testSecret))
	g.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := serve(e, http.MethodGet, "/v1/ping", bearer(t, 9, model.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)

	out := buf.String()
	assert.Contains(t, out, `"user":"9"`)
	assert.Contains(t, out, `"role":"admin"`)
	assert.Contains(t, out, `"status":200`)
}
