package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestAuthContext(t *testing.T) {
	ctx := context.Background()
	_, ok := UserID(ctx)
	require.False(t, ok)

	ctx = WithUserID(ctx, "u1")
	ctx = WithEmail(ctx, "u1@example.com")
	id, ok := UserID(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", id)
	email, _ := Email(ctx)
	require.Equal(t, "u1@example.com", email)

	_, ok = ImpersonatorID(ctx)
	require.False(t, ok)
	_, ok = ImpersonatorID(WithImpersonator(ctx, ""))
	require.False(t, ok)
	actor, ok := ImpersonatorID(WithImpersonator(ctx, "admin-7"))
	require.True(t, ok)
	require.Equal(t, "admin-7", actor)
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewAppError("X", "x failed", http.StatusBadGateway, base)
	require.ErrorIs(t, err, base)
	require.Equal(t, "boom", err.Error())
	require.Equal(t, "msg", NewAppError("X", "msg", 400, nil).Error())

	got, ok := AsAppError(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	require.Same(t, err, got)
	_, ok = AsAppError(base)
	require.False(t, ok)
}

func TestWriteAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, NewAppError("VALIDATION_ERROR", "bad input", http.StatusBadRequest, nil).WithDetails(map[string]string{"packId": "required"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Equal(t, "required", body.Error.Details["packId"])

	rec = httptest.NewRecorder()
	WriteAppError(rec, &AppError{Code: "X", Message: "no status"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	WriteAppError(rec, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"INTERNAL"`)
}

func TestDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusCreated, map[string]string{"orderRef": "ord_1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"data":{"orderRef":"ord_1"}}`, rec.Body.String())
}

func TestHashKey(t *testing.T) {
	a := HashKey("idem:", "u1", "POST", "/x", "k")
	require.True(t, strings.HasPrefix(a, "idem:"))
	require.Len(t, a, len("idem:")+64)
	require.Equal(t, a, HashKey("idem:", "u1", "POST", "/x", "k"))
	require.NotEqual(t, a, HashKey("idem:", "u1|POST", "/x", "k", ""))
	require.Equal(t, "idem:"+Sha256Hex("u1|POST|/x|k"), a)
}

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute, Scope: func(r *http.Request) string { return r.Header.Get("X-User") }}, mr
}

func sendIdem(h http.Handler, user, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("Idempotency-Key", key)
	req.Header.Set("X-User", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdemReplaysFirstResponse(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		Data(w, http.StatusCreated, map[string]int{"call": calls})
	}))

	first := sendIdem(h, "u1", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get("Idempotent-Replayed"))

	again := sendIdem(h, "u1", "abc")
	require.Equal(t, http.StatusCreated, again.Code)
	require.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	require.Equal(t, "application/json", again.Header().Get("Content-Type"))
	require.JSONEq(t, first.Body.String(), again.Body.String())

	other := sendIdem(h, "u2", "abc")
	require.Equal(t, http.StatusCreated, other.Code)
	require.JSONEq(t, `{"data":{"call":2}}`, other.Body.String())
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusBadGateway
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	require.Equal(t, http.StatusBadGateway, sendIdem(h, "", "retry-me").Code)
	require.Empty(t, mr.Keys())
	status = http.StatusOK
	require.Equal(t, http.StatusOK, sendIdem(h, "", "retry-me").Code)
	require.Len(t, mr.Keys(), 1)
}

func TestIdemReleasesKeyOnClientError(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	status := http.StatusBadRequest
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))
	require.Equal(t, http.StatusBadRequest, sendIdem(h, "u1", "fix-me").Code)
	require.Empty(t, mr.Keys())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, sendIdem(h, "u1", "fix-me").Code)
	require.Equal(t, 2, calls)
}

func TestIdemConflictWhileInFlight(t *testing.T) {
	idem, mr := newIdem(t)
	var nested int
	var h http.Handler
	h = idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nested = sendIdem(h, "u1", "slow").Code
		w.WriteHeader(http.StatusCreated)
	}))
	require.Equal(t, http.StatusCreated, sendIdem(h, "u1", "slow").Code)
	require.Equal(t, http.StatusConflict, nested)
	require.Len(t, mr.Keys(), 1)
}

func TestIdemReleasesKeyOnPanic(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler blew up")
	}))
	require.Panics(t, func() { sendIdem(h, "u1", "boom") })
	require.Empty(t, mr.Keys())
}

func TestIdemPassThroughWithoutHeader(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, mr.Keys())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5123"
	require.Equal(t, "198.51.100.4", ClientIP(req))
}

func TestIsJSONContentType(t *testing.T) {
	require.True(t, IsJSONContentType("application/json"))
	require.True(t, IsJSONContentType("application/json; charset=utf-8"))
	require.False(t, IsJSONContentType("text/plain"))
	require.False(t, IsJSONContentType(""))
}

func TestInMemoryEmail(t *testing.T) {
	m := &InMemoryEmail{}
	require.NoError(t, m.Send("a@example.com", "hi", "<p>hi</p>"))
	require.Equal(t, []SentEmail{{To: "a@example.com", Subject: "hi", HTML: "<p>hi</p>"}}, m.Sent())
	m.Sent()[0].To = "changed"
	require.Equal(t, "a@example.com", m.Outbox[0].To)
}
