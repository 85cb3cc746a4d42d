package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/config"
	"github.com/festival-platform/program-scheduler/internal/queue"
	"github.com/festival-platform/program-scheduler/internal/utils"
)

const testSecret = "test-secret"

func adminRoute(e *echo.Echo) {
	g := e.Group("/v1/admin", JWTAuth(testSecret), RequireRole(utils.RoleAdmin, utils.RoleOrganizer))
	g.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(ContextUserID).(string))
	})
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, "ops-42", role, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return "Bearer " + tok.Token
}

func TestAdminGuard(t *testing.T) {
	e := echo.New()
	adminRoute(e)

	cases := []struct {
		name   string
		auth   string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"customer role", bearer(t, "CUSTOMER"), http.StatusForbidden},
		{"admin", bearer(t, utils.RoleAdmin), http.StatusOK},
		{"organizer", bearer(t, utils.RoleOrganizer), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/whoami", nil)
			if tc.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status == http.StatusOK && rec.Body.String() != "ops-42" {
				t.Fatalf("user id = %q", rec.Body.String())
			}
		})
	}
}

func lineupContext(e *echo.Echo, festivalID, rawQuery string) echo.Context {
	target := "/v1/festivals/" + festivalID + "/lineup"
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	c.SetPath("/v1/festivals/:id/lineup")
	c.SetParamNames("id")
	c.SetParamValues(festivalID)
	return c
}

func TestCacheKeyIsScopedToFestival(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Enabled: true, Prefix: "cache", KeyStrategy: "route_query"}
	lc := NewLineupCache(cfg, nil, nil)

	k1 := cacheKeyFrom(cfg, lineupContext(e, "7", "page=1"), "7", 0)
	k2 := cacheKeyFrom(cfg, lineupContext(e, "7", "page=2"), "7", 0)
	k3 := cacheKeyFrom(cfg, lineupContext(e, "8", "page=1"), "8", 0)

	if k1 == k2 || k1 == k3 {
		t.Fatalf("keys collide: %s %s %s", k1, k2, k3)
	}
	if !strings.HasPrefix(k1, "cache:festival:7:") {
		t.Fatalf("key %s is not festival scoped", k1)
	}
	for _, k := range []string{k1, k2} {
		if ok, _ := path.Match(lc.pattern(7), k); !ok {
			t.Fatalf("pattern %s does not match %s", lc.pattern(7), k)
		}
	}
	if ok, _ := path.Match(lc.pattern(7), k3); ok {
		t.Fatalf("festival 7 pattern matches festival 8 key %s", k3)
	}
	if ok, _ := path.Match(lc.pattern(7), cacheKeyFrom(cfg, lineupContext(e, "70", ""), "70", 0)); ok {
		t.Fatal("festival 7 pattern matches festival 70")
	}
}

func TestCacheGenerationSeparatesPagesWrittenAcrossInvalidation(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Enabled: true, Prefix: "cache", KeyStrategy: "route_query"}
	lc := NewLineupCache(cfg, nil, nil)

	// a miss that read generation 3 and writes after an invalidation bumped
	// it to 4 must not land on the key readers now look up
	before := cacheKeyFrom(cfg, lineupContext(e, "7", "page=1"), "7", 3)
	after := cacheKeyFrom(cfg, lineupContext(e, "7", "page=1"), "7", 4)
	if before == after {
		t.Fatalf("generations share key %s", before)
	}
	for _, k := range []string{before, after} {
		if ok, _ := path.Match(lc.pattern(7), k); !ok {
			t.Fatalf("pattern %s does not match %s", lc.pattern(7), k)
		}
	}
	gen := generationKey(cfg.Prefix, "7")
	if ok, _ := path.Match(lc.pattern(7), gen); ok {
		t.Fatalf("invalidation pattern would delete generation key %s", gen)
	}
	if gen == generationKey(cfg.Prefix, "70") {
		t.Fatal("festivals share a generation key")
	}
}

func TestCacheKeyRouteStrategyKeepsPathsApart(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route"}
	a := cacheKeyFrom(cfg, lineupContext(e, "1", ""), "", 0)
	b := cacheKeyFrom(cfg, lineupContext(e, "2", ""), "", 0)
	if a == b {
		t.Fatal("different festivals share a key under the route strategy")
	}
	if strings.Contains(a, "festival") {
		t.Fatalf("unscoped key %s carries a festival namespace", a)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"data":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || gotHdr.Get("Content-Type") != "application/json" || string(body) != `{"data":[]}` {
		t.Fatalf("decode = %d %v %q %v", status, gotHdr, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("short payload decoded")
	}
}

func TestWithoutRedisMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}
	e.GET("/x", h,
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil, "", nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil),
	)
	for range 3 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("status %d, X-Cache %q", rec.Code, rec.Header().Get("X-Cache"))
		}
	}
	if calls != 3 {
		t.Fatalf("handler called %d times, want 3", calls)
	}

	lc := NewLineupCache(config.CacheConfig{Enabled: true}, nil, nil)
	if err := lc.PerformanceChanged(context.Background(), queue.PerformanceEvent{FestivalID: 1}); err != nil {
		t.Fatalf("invalidate without redis: %v", err)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/festivals/1/lineup", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/festivals/:id/lineup")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	if got, want := buildRateKey(cfg, c), "rl:ip:10.0.0.9:user:anon:route:GET /v1/festivals/:id/lineup"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
	c.Set(ContextUserID, "ops-1")
	cfg.KeyStrategy = "user"
	if got := buildRateKey(cfg, c); got != "rl:user:ops-1" {
		t.Fatalf("key = %q", got)
	}
}

func TestParseBucketResult(t *testing.T) {
	res, ok := parseBucketResult([]any{int64(0), int64(0), int64(1500)})
	if !ok || res.allowed || res.retryMs != 1500 {
		t.Fatalf("result = %+v, %v", res, ok)
	}
	if _, ok := parseBucketResult("OK"); ok {
		t.Fatal("non-array reply accepted")
	}
}

func TestRequestIDReachesLogger(t *testing.T) {
	e := echo.New()
	e.Use(RequestID(), RequestLogger(nil))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("missing request id header")
	}
}
