package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
)

// requestTimeout bounds the work of a single request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError maps the apperr taxonomy onto status codes.  Backend details
// are logged, never returned.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		ce *apperr.ConflictError
		ge *apperr.AuthGateError
		ue *apperr.BackendUnavailableError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Error(), "rule": ve.Rule}
		if len(ve.Rules) > 1 {
			body["rules"] = ve.Rules
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error()})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "field": ce.Field})
	case errors.As(err, &ge):
		status := http.StatusForbidden
		if ge.Reason == apperr.ReasonBadCredentials || ge.Reason == apperr.ReasonUnauthenticated {
			status = http.StatusUnauthorized
		}
		return c.JSON(status, echo.Map{"error": ge.Error(), "reason": ge.Reason})
	case errors.As(err, &ue):
		log.Error("backend unavailable", zap.String("backend", ue.Backend), zap.String("path", c.Path()), zap.Error(ue.Err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", zap.String("path", c.Path()))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
	}
	log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func paramSlot(c echo.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("slot"))
	return n, err == nil
}
