package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"eventix/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// GetPaymentDetails - mirrored session for the payment page
func (h *PaymentHandler) GetPaymentDetails(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	session, err := h.payments.GetSession(c.Request().Context(), c.PathParam("transactionId"))
	if err != nil {
		return writeError(c, err)
	}
	if session["user_id"] != uid {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"transaction_id": session["transaction_id"],
		"amount":         session["amount"],
		"status":         session["status"],
		"reference":      session["reference"],
		"qr_payload":     session["qr_payload"],
		"expires_at":     session["expires_at"],
	})
}
