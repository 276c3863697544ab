package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"eventix/internal/services"
)

type RewardsHandler struct {
	ledger    *services.LedgerService
	referrals *services.ReferralService
}

func NewRewardsHandler(ledger *services.LedgerService, referrals *services.ReferralService) *RewardsHandler {
	return &RewardsHandler{ledger: ledger, referrals: referrals}
}

// GetBalance - current points balance for the caller
func (h *RewardsHandler) GetBalance(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	balance, err := h.ledger.Balance(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_points": balance})
}

// Register - create an account, optionally redeeming a referral code
func (h *RewardsHandler) Register(c echo.Context) error {
	var req services.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	user, coupon, err := h.referrals.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"user":   user,
		"coupon": coupon,
	})
}

// ApplyReferral - link the caller to a referrer by code
func (h *RewardsHandler) ApplyReferral(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req struct {
		ReferralCode string `json:"referral_code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	coupon, err := h.referrals.ApplyReferral(c.Request().Context(), uid, req.ReferralCode)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, coupon)
}
