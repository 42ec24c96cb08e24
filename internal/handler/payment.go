package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/service"
)

// PaymentHandler receives payment results over the synchronous webhook.
// The same reconciler also consumes results from the broker queue; both
// paths are idempotent so a result delivered on both is applied once.
type PaymentHandler struct {
	Reconciler *service.Reconciler
	Secret     string
	Log        observability.Logger
}

// NewPaymentHandler constructs the handler.  All dependencies must be
// non-nil and the webhook secret non-empty.
func NewPaymentHandler(rec *service.Reconciler, secret string, log observability.Logger) *PaymentHandler {
	if rec == nil || log == nil || secret == "" {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Reconciler: rec, Secret: secret, Log: log}
}

// Webhook handles POST /v1/payments/webhook.  The provider signs the
// call with a shared secret in X-Webhook-Secret.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	got := c.Request().Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook secret"})
	}

	var body struct {
		PaymentRef    string `json:"payment_ref"`
		Status        string `json:"status"`
		ProviderTxnID string `json:"provider_txn_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentRef == "" || body.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref and status are required"})
	}

	out, err := h.Reconciler.HandleResult(c.Request().Context(), body.PaymentRef, body.Status, body.ProviderTxnID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown payment_ref"})
		}
		h.Log.WithField("payment_ref", body.PaymentRef).Error("webhook reconciliation failed: ", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconciliation failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"result":     out.Result,
		"booking_id": out.BookingID,
		"reason":     out.Reason,
	})
}
