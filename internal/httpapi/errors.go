package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/archive"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/session"
	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

type errorMapping struct {
	target    error
	status    int
	code      string
	retryable bool
}

var errorMappings = []errorMapping{
	{session.ErrIllegalMove, http.StatusUnprocessableEntity, chessdto.CodeIllegalMove, false},
	{session.ErrNotPlayerTurn, http.StatusConflict, chessdto.CodeNotYourTurn, false},
	{session.ErrOpponentPending, http.StatusConflict, chessdto.CodeOpponentPending, true},
	{session.ErrGameOver, http.StatusConflict, chessdto.CodeGameOver, false},
	{session.ErrClockExpired, http.StatusConflict, chessdto.CodeClockExpired, false},
	{session.ErrNothingToRetry, http.StatusConflict, chessdto.CodeNothingToRetry, false},
	{session.ErrIndexOutOfRange, http.StatusBadRequest, chessdto.CodeIndexOutOfRange, false},
	{domain.ErrInvalidDifficulty, http.StatusBadRequest, chessdto.CodeInvalidSettings, false},
	{domain.ErrInvalidColor, http.StatusBadRequest, chessdto.CodeInvalidSettings, false},
	{domain.ErrInvalidTimeControl, http.StatusBadRequest, chessdto.CodeInvalidSettings, false},
	{archive.ErrGameNotFound, http.StatusNotFound, chessdto.CodeNotFound, false},
	{session.ErrTooManySessions, http.StatusServiceUnavailable, chessdto.CodeTooManySessions, true},
	{session.ErrControllerClosed, http.StatusServiceUnavailable, chessdto.CodeUnavailable, true},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, chessdto.CodeUnavailable, true},
}

// toDomainError maps a service error onto a status and wire error.
func toDomainError(err error) (int, chessdto.DomainError) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, chessdto.DomainError{Code: m.code, Message: err.Error(), Retryable: m.retryable}
		}
	}
	return http.StatusInternalServerError, chessdto.DomainError{Code: chessdto.CodeInternal, Message: "internal error", Retryable: true}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, derr := toDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("http_request_failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Debug("http_request_rejected",
			zap.String("path", r.URL.Path), zap.String("code", derr.Code), zap.Error(err))
	}
	h.writeDomainError(w, status, derr)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, status int, derr chessdto.DomainError) {
	writeJSON(w, status, chessdto.ErrorResponse{Error: derr})
}
