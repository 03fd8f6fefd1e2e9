package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-checkout/internal/common"
	"github.com/noah-isme/studio-checkout/internal/tenant"
)

func newRouter(svc *Service) http.Handler {
	h := &Handler{Svc: svc, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Route("/api/v1/checkout", h.Routes)
	return r
}

func post(t *testing.T, router http.Handler, path, body string, actor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	ctx := tenant.WithTenant(req.Context(), tenantID)
	ctx = common.WithUserID(ctx, memberID)
	ctx = common.WithEmail(ctx, memberEmail)
	if actor != "" {
		ctx = common.WithImpersonator(ctx, actor)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorBody {
	t.Helper()
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHandlerCheckoutOpensSession(t *testing.T) {
	f := newFixture(t)
	rec := post(t, newRouter(f.svc), "/api/v1/checkout/", `{"packId":"`+packID+`"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Data.Complete)
	require.NotNil(t, body.Data.Session)
	require.Equal(t, "cs_test_1", body.Data.Session.ID)
	require.Equal(t, int64(5181), body.Data.Breakdown.GrossAmount)
}

func TestHandlerCheckoutCompletesFreeOrder(t *testing.T) {
	f := newFixture(t)
	rec := post(t, newRouter(f.svc), "/api/v1/checkout/", `{"packId":"`+packID+`","couponCode":"welcome"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Data.Complete)
	require.NotEmpty(t, body.Data.ReturnURL)
}

func TestHandlerQuote(t *testing.T) {
	f := newFixture(t)
	rec := post(t, newRouter(f.svc), "/api/v1/checkout/quote", `{"planId":"`+planID+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"chargeMode":"subscription"`)
	require.Empty(t, f.processor.requests)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f.svc)

	rec := post(t, router, "/api/v1/checkout/", `{`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)

	rec = post(t, router, "/api/v1/checkout/", `{"packId":"`+packID+`","planId":"`+planID+`"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

	rec = post(t, router, "/api/v1/checkout/", `{"packId":"`+packID+`"}`, "staff-1")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "IMPERSONATION_FORBIDDEN", decodeError(t, rec).Code)

	rec = post(t, router, "/api/v1/checkout/", `{"packId":"`+missingID+`"}`, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	f.processor.err = errBoom
	rec = post(t, router, "/api/v1/checkout/", `{"packId":"`+packID+`"}`, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotContains(t, rec.Body.String(), errBoom.Error())
}

func TestHandlerWithoutService(t *testing.T) {
	rec := post(t, newRouter(nil), "/api/v1/checkout/", `{}`, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
