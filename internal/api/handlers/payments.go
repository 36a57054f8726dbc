package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/get-me-through/server/internal/api/middleware"
	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/metrics"
	"github.com/rs/zerolog"
)

// SignatureHeader is where the provider puts the webhook body HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// PaymentsHandler serves checkout and reconciliation endpoints.
type PaymentsHandler struct {
	payments *payments.Service
	env      string
	logger   zerolog.Logger
}

func NewPaymentsHandler(paymentSvc *payments.Service, env string, logger zerolog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		payments: paymentSvc,
		env:      env,
		logger:   logger.With().Str("component", "payments_handler").Logger(),
	}
}

// CreateOrder opens (or resumes) a provider order for a priced event.
func (h *PaymentsHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	eventID := r.PathValue("id")

	order, err := h.payments.CreateOrder(r.Context(), identity.UserID, identity.Email, eventID)
	if err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.env)
		case errors.Is(err, payments.ErrFreeEvent):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Event is free", err, h.env)
		case errors.Is(err, payments.ErrAlreadyPaid):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Already paid", err, h.env)
		case errors.Is(err, events.ErrFull):
			problem.Write(w, r, http.StatusConflict, problem.TypeCapacityExceeded, "Event is full", err, h.env)
		default:
			problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstreamError, "Order creation failed", err, h.env)
		}
		return
	}

	metrics.PaymentOrdersTotal.Inc()
	writeJSON(w, http.StatusCreated, order)
}

// Webhook ingests provider deliveries. The raw body is read before any
// parsing because the signature covers the exact bytes on the wire.
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Unreadable body", err, h.env)
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if err := h.payments.Reconcile(r.Context(), body, signature); err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			metrics.PaymentReconciliationsTotal.WithLabelValues("rejected").Inc()
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Signature mismatch", err, h.env)
			return
		}
		if errors.Is(err, payments.ErrNotFound) {
			// Unknown order; acknowledge so the provider stops retrying,
			// but leave a trace for operators.
			h.logger.Warn().Str("signature", signature).Msg("webhook for unknown order")
			w.WriteHeader(http.StatusOK)
			return
		}
		metrics.PaymentReconciliationsTotal.WithLabelValues("error").Inc()
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Reconciliation failed", err, h.env)
		return
	}

	metrics.PaymentReconciliationsTotal.WithLabelValues("processed").Inc()
	w.WriteHeader(http.StatusOK)
}

type verifyRedirectRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// VerifyRedirect checks the signature the checkout widget hands back to
// the browser. A passing check is a UX hint; the webhook remains the
// source of truth for entitlement.
func (h *PaymentsHandler) VerifyRedirect(w http.ResponseWriter, r *http.Request) {
	var req verifyRedirectRequest
	if !decodeJSON(w, r, h.env, &req) {
		return
	}

	if !h.payments.VerifyRedirect(req.OrderID, req.PaymentID, req.Signature) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Signature mismatch", payments.ErrInvalidSignature, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// MyPayment returns the caller's payment for an event.
func (h *PaymentsHandler) MyPayment(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)
	eventID := r.PathValue("id")

	payment, err := h.payments.Get(r.Context(), identity.UserID, eventID)
	if err != nil {
		if errors.Is(err, payments.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "No payment for this event", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Lookup failed", err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}
