package checkout

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/studio-checkout/internal/common"
)

type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Routes mounts the checkout endpoints. Callers must already be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Checkout)
	r.Post("/quote", h.Quote)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Checkout(r.Context(), CallerFrom(r.Context()), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if out.Complete {
		status = http.StatusOK
	}
	common.Data(w, status, out)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Quote(r.Context(), CallerFrom(r.Context()), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return Request{}, false
	}
	var payload Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Request{}, false
	}
	return payload, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := AppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("checkout_failed")
	}
	common.WriteAppError(w, appErr)
}
