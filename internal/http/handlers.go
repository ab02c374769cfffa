package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vsauth/internal/verify"
	"vsauth/pkg/domain"
	vErrors "vsauth/pkg/errors"
	"vsauth/pkg/platform/httputil"
	"vsauth/pkg/requestcontext"
)

type registerRequest struct {
	ProductID string `json:"product_id"`
	Model     string `json:"model"`
	Color     string `json:"color"`
	Material  string `json:"material"`
	Price     int    `json:"price"`
	Year      int    `json:"year"`
	Size      string `json:"size"`
	Serial    string `json:"serial"`
}

type customerVerifyRequest struct {
	ProductID   string `json:"product_id"`
	ShortCode   string `json:"short_code"`
	WithHistory bool   `json:"with_history"`
}

// HandleRegister registers a product key, issuing a security code on first
// sight and merging metadata on repeats.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerRequest](w, r)
	if !ok {
		return
	}

	key, err := domain.ParseProductKey(req.ProductID)
	if err != nil {
		httputil.WriteError(w, vErrors.Wrap(err, vErrors.CodeInvalidIdentifier, "invalid product identifier"))
		return
	}

	patch := domain.Metadata{
		Model:    req.Model,
		Color:    req.Color,
		Material: req.Material,
		Price:    req.Price,
		Year:     req.Year,
		Size:     req.Size,
		Serial:   req.Serial,
	}

	code, err := h.registry.RegisterOrUpdate(r.Context(), key, patch)
	if err != nil {
		h.logger.Error("register failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"product_id", key.String(),
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"productId": key.String(),
		"shortCode": code,
	})
}

// HandleGetCode returns the stored security code for a registered key.
func (h *Handler) HandleGetCode(w http.ResponseWriter, r *http.Request) {
	rawKey := chi.URLParam(r, "productID")

	code, found := h.registry.LookupCode(r.Context(), rawKey)
	if !found {
		httputil.WriteError(w, vErrors.New(vErrors.CodeNotFound, "product not registered"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"productId": rawKey,
		"shortCode": code,
	})
}

// HandleHistory returns the append-only verification trail for a key.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	rawKey := chi.URLParam(r, "productID")

	history, err := h.registry.History(r.Context(), rawKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if history == nil {
		history = []domain.VerificationEvent{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"productId": rawKey,
		"history":   history,
	})
}

// HandleAdminVerify checks a key against the catalog source and ensures a
// security code exists for authentic products.
func (h *Handler) HandleAdminVerify(w http.ResponseWriter, r *http.Request) {
	rawKey := chi.URLParam(r, "productID")

	result, err := h.verifier.AdminVerify(r.Context(), rawKey)
	if err != nil {
		h.logger.Warn("admin verify failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"product_id", rawKey,
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCustomerVerify runs the public verification flow. Malformed input
// degrades to a fake verdict rather than an error.
func (h *Handler) HandleCustomerVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[customerVerifyRequest](w, r)
	if !ok {
		return
	}

	result, err := h.verifier.Verify(r.Context(), verify.Request{
		RawKey:      req.ProductID,
		Code:        req.ShortCode,
		Origin:      domain.SourceCustomer,
		WithHistory: req.WithHistory,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleQR renders the verification deep link for a key as a PNG.
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseProductKey(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, vErrors.Wrap(err, vErrors.CodeInvalidIdentifier, "invalid product identifier"))
		return
	}

	png, err := h.qr.PNG(key)
	if err != nil {
		h.logger.Error("qr render failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"product_id", key.String(),
			"error", err)
		httputil.WriteError(w, vErrors.Wrap(err, vErrors.CodeInternal, "qr generation failed"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
