package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"eventix/internal/services"
	"eventix/models"
)

type TransactionHandler struct {
	txns *services.TransactionService
}

func NewTransactionHandler(txns *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{txns: txns}
}

// Create - start a purchase
func (h *TransactionHandler) Create(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req services.CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	req.UserID = uid

	if req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "quantity must be at least 1"})
	}
	if req.PointsUsed < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "points_used must not be negative"})
	}

	txn, err := h.txns.Create(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, txn)
}

// Get - fetch one transaction
func (h *TransactionHandler) Get(c echo.Context) error {
	txn, err := h.txns.Get(c.Request().Context(), c.PathParam("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}

// UploadPaymentProof - attach a payment proof reference
func (h *TransactionHandler) UploadPaymentProof(c echo.Context) error {
	var req struct {
		PaymentProof string `json:"payment_proof"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	txn, err := h.txns.UploadPaymentProof(c.Request().Context(), c.PathParam("id"), req.PaymentProof)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}

// Confirm - organizer approves the payment proof
func (h *TransactionHandler) Confirm(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	txn, err := h.txns.Confirm(c.Request().Context(), c.PathParam("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}

// Reject - organizer declines the payment proof; reservations roll back
func (h *TransactionHandler) Reject(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	txn, err := h.txns.Reject(c.Request().Context(), c.PathParam("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}

// UpdateStatus - generic status-change endpoint dispatching to the legal
// transition for the requested target status.
func (h *TransactionHandler) UpdateStatus(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req struct {
		Status       models.TransactionStatus `json:"status"`
		PaymentProof *string                  `json:"payment_proof,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	id := c.PathParam("id")
	ctx := c.Request().Context()

	var (
		txn *models.Transaction
		err error
	)
	switch req.Status {
	case models.StatusWaitingForAdmin:
		proof := ""
		if req.PaymentProof != nil {
			proof = *req.PaymentProof
		}
		txn, err = h.txns.UploadPaymentProof(ctx, id, proof)
	case models.StatusDone:
		txn, err = h.txns.Confirm(ctx, id, uid)
	case models.StatusRejected:
		txn, err = h.txns.Reject(ctx, id, uid)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported target status"})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}
