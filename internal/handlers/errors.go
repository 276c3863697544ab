package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"eventix/internal/status"
)

// writeError maps the sentinel taxonomy onto HTTP status codes so callers
// can branch on the code instead of parsing message text.
func writeError(c echo.Context, err error) error {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, status.ErrNotFound), errors.Is(err, status.ErrUserNotFound):
		code = http.StatusNotFound
	case errors.Is(err, status.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, status.ErrInvalidStateTransition),
		errors.Is(err, status.ErrInsufficientInventory),
		errors.Is(err, status.ErrAlreadyReferred),
		errors.Is(err, status.ErrEmailTaken):
		code = http.StatusConflict
	case errors.Is(err, status.ErrInsufficientPoints),
		errors.Is(err, status.ErrInvalidVoucher),
		errors.Is(err, status.ErrInvalidTicketType),
		errors.Is(err, status.ErrMissingProof),
		errors.Is(err, status.ErrSelfReferral),
		errors.Is(err, status.ErrInvalidReferralCode):
		code = http.StatusBadRequest
	}

	return c.JSON(code, map[string]string{"error": err.Error()})
}

// userID extracts the caller identity set by the upstream auth layer.
func userID(c echo.Context) string {
	return c.Request().Header.Get("X-User-ID")
}
