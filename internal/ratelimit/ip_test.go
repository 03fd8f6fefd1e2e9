package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-checkout/internal/common"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

func TestIPMiddlewareLimitsPerAddress(t *testing.T) {
	l, err := NewIPLimiter("2-M", nil, "ip")
	require.NoError(t, err)

	h := IPMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, send("10.0.0.1:1000"))
	require.Equal(t, http.StatusNoContent, send("10.0.0.1:1001"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	require.Equal(t, http.StatusNoContent, send("10.0.0.2:1000"))
}

func TestNewIPLimiterRejectsBadRate(t *testing.T) {
	_, err := NewIPLimiter("lots", nil, "ip")
	require.Error(t, err)
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	require.Equal(t, "checkout:ip:10.0.0.9", CallerKey(req))

	req = req.WithContext(tenant.WithTenant(req.Context(), "t1"))
	require.Equal(t, "t1:checkout:ip:10.0.0.9", CallerKey(req))

	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	require.Equal(t, "t1:checkout:user:u1", CallerKey(req))
}
