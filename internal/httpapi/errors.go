package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// ErrorResponse standardizes error payloads. Code distinguishes capacity
// exhaustion ("route_full") from a seat clash ("seat_taken") so clients can
// offer "route is full" versus "choose another seat" guidance.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: GetRequestID(c),
	})
}

// RespondDomainError maps core errors onto HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var ve *transportcore.ValidationError

	switch {
	case errors.As(err, &ve):
		respondError(c, http.StatusBadRequest, "validation_error", ve.Error(), ve.Fields)
	case transportcore.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, transportcore.ErrRouteFull):
		respondError(c, http.StatusConflict, "route_full", err.Error(), nil)
	case errors.Is(err, transportcore.ErrSeatAlreadyTaken):
		respondError(c, http.StatusConflict, "seat_taken", err.Error(), nil)
	case errors.Is(err, transportcore.ErrDuplicateActiveRequest):
		respondError(c, http.StatusConflict, "duplicate_request", err.Error(), nil)
	case errors.Is(err, transportcore.ErrAlreadySubscribed):
		respondError(c, http.StatusConflict, "already_subscribed", err.Error(), nil)
	case errors.Is(err, transportcore.ErrInvalidRequestState):
		respondError(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, transportcore.ErrSubscriptionNotActive):
		respondError(c, http.StatusConflict, "not_active", err.Error(), nil)
	case errors.Is(err, transportcore.ErrNotPermitted):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case transportcore.IsInvariantViolation(err):
		// A defect, not bad input. Give the caller nothing to correct.
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
