package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-checkout/internal/common"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

type fakeAllower struct {
	allowed   bool
	remaining int
	reset     time.Time
	err       error
	keys      []string
}

func (f *fakeAllower) Allow(_ context.Context, key string, _ time.Duration, _ int) (bool, int, time.Time, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.remaining, f.reset, f.err
}

func serve(t *testing.T, h Handler, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusCreated)
	})
	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, req)
	return rec, reached
}

func staticKey(*http.Request) string { return "checkout:user:u1" }

func TestMiddlewareRejectsWithJSONError(t *testing.T) {
	fake := &fakeAllower{allowed: false, remaining: 0, reset: time.Now().Add(30 * time.Second)}
	h := Handler{Limiter: fake, Config: Config{Key: staticKey, Window: time.Minute, Max: 5}}

	rec, reached := serve(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	require.False(t, reached)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Error.Code)
	require.Equal(t, "too many checkout attempts", body.Error.Message)
	require.Equal(t, []string{"checkout:user:u1"}, fake.keys)
}

func TestMiddlewareAllowsAndSetsHeaders(t *testing.T) {
	reset := time.Unix(1_900_000_000, 0)
	fake := &fakeAllower{allowed: true, remaining: 3, reset: reset}
	h := Handler{Limiter: fake, Config: Config{Key: staticKey, Window: time.Minute, Max: 4}}

	rec, reached := serve(t, h, httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, reached)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "4", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "1900000000", rec.Header().Get("X-RateLimit-Reset"))
	require.Empty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewarePassesThroughWithoutKeyOrLimiter(t *testing.T) {
	fake := &fakeAllower{}
	empty := Handler{Limiter: fake, Config: Config{Key: func(*http.Request) string { return "" }, Max: 1, Window: time.Minute}}
	rec, reached := serve(t, empty, httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, reached)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Empty(t, fake.keys, "empty key must not consult the limiter")
	require.Empty(t, rec.Header().Get("X-RateLimit-Limit"))

	noLimiter := Handler{Config: Config{Key: staticKey, Max: 1, Window: time.Minute}}
	rec, reached = serve(t, noLimiter, httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, reached)
	require.Equal(t, http.StatusCreated, rec.Code)

	noKeyFunc := Handler{Limiter: fake}
	_, reached = serve(t, noKeyFunc, httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, reached)
	require.Empty(t, fake.keys)
}

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	boom := errors.New("redis down")
	fake := &fakeAllower{err: boom}
	var reported error
	h := Handler{
		Limiter: fake,
		Config:  Config{Key: staticKey, Window: time.Minute, Max: 1},
		OnError: func(err error) { reported = err },
	}
	rec, reached := serve(t, h, httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, reached)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.ErrorIs(t, reported, boom)

	h.OnError = nil
	_, reached = serve(t, h, httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, reached)
}

func TestMiddlewareWithRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: CallerKey, Window: time.Minute, Max: 1},
	}
	request := func(user string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		ctx := tenant.WithTenant(req.Context(), "studio-a")
		ctx = common.WithUserID(ctx, user)
		return req.WithContext(ctx)
	}

	rec, reached := serve(t, h, request("u1"))
	require.True(t, reached)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, reached = serve(t, h, request("u1"))
	require.False(t, reached)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), `"RATE_LIMITED"`)

	_, reached = serve(t, h, request("u2"))
	require.True(t, reached, "limits are per caller")
}
