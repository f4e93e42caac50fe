package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dining-reservation/internal/config"
)

func TestRequestIDAssignsAndPropagates(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("request_id").(string))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	rid := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, rid, 36)
	assert.Equal(t, rid, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func TestAccessLogKeepsErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(AccessLog())
	e.GET("/", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil))
	e.POST("/", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCacheKeyIgnoresQueryOrder(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "p", KeyStrategy: "path_query"}
	key := func(target string, gen int64) string {
		return cacheKeyFrom(cfg, e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder()), gen)
	}
	assert.Equal(t, key("/v1/tables?page=2&limit=5", 0), key("/v1/tables?limit=5&page=2", 0))
	assert.NotEqual(t, key("/v1/reservations/1", 0), key("/v1/reservations/2", 0))
	assert.NotEqual(t, key("/v1/tables", 3), key("/v1/tables", 4))
	assert.Regexp(t, `^p:3:[0-9a-f]{40}$`, key("/v1/tables", 3))
}

func TestRedisCacheDropsReadsOverlappingAWrite(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer rdb.Close()

	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "path_query",
		Prefix:       fmt.Sprintf("dining:cache:test:%d", time.Now().UnixNano()),
		FlushOnWrite: true,
	}
	defer rdb.Del(context.Background(), generationKey(cfg.Prefix))

	var (
		e       = echo.New()
		version atomic.Int64
		overlap atomic.Bool
	)
	e.Use(NewRedisCache(cfg, rdb))
	e.POST("/v1/tables", func(c echo.Context) error {
		version.Add(1)
		return c.NoContent(http.StatusCreated)
	})
	e.GET("/v1/tables", func(c echo.Context) error {
		v := version.Load()
		if overlap.CompareAndSwap(true, false) {
			// A write commits and responds while this read is in flight.
			e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/tables", nil))
		}
		return c.String(http.StatusOK, strconv.FormatInt(v, 10))
	})
	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/v1/tables")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "0", rec.Body.String())
	rec = get("/v1/tables")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/tables", nil))
	rec = get("/v1/tables")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "1", rec.Body.String())

	overlap.Store(true)
	rec = get("/v1/tables?page=2")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "1", rec.Body.String())
	rec = get("/v1/tables?page=2")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "2", rec.Body.String())
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"docs":[]}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"docs":[]}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestParseBucket(t *testing.T) {
	st, ok := parseBucket([]any{int64(0), int64(0), int64(750)})
	require.True(t, ok)
	assert.False(t, st.allowed)
	assert.Equal(t, int64(750), st.retryMs)

	st, ok = parseBucket([]any{int64(1), int64(9), int64(0)})
	require.True(t, ok)
	assert.True(t, st.allowed)
	assert.Equal(t, int64(9), st.remaining)

	_, ok = parseBucket("garbage")
	assert.False(t, ok)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/reservations/7/tables", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations/:id/tables")

	assert.Equal(t, "rl:ip:10.0.0.1:route:PUT /v1/reservations/:id/tables",
		buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
}
