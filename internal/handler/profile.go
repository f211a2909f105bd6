package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/middleware"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/service/admission"
)

// ProfileHandler serves full-profile reads and member edits.
type ProfileHandler struct {
	Flow Workflow
	Log  *zap.Logger
}

func NewProfileHandler(flow Workflow, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{Flow: flow, Log: log}
}

// Get handles GET /v1/profiles/:id.  Hidden and missing profiles both 404.
func (h *ProfileHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Flow.GetProfile(ctx, middleware.ViewerFrom(c), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Me handles GET /v1/me.
func (h *ProfileHandler) Me(c echo.Context) error {
	v := middleware.ViewerFrom(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Flow.GetProfile(ctx, v, v.ProfileID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateMe handles PATCH /v1/me.  Only descriptive fields can change here.
func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	var fields model.ProfileFields
	if err := c.Bind(&fields); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	v := middleware.ViewerFrom(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Flow.UpdateProfile(ctx, v, v.ProfileID, admission.ProfileUpdate{Fields: fields})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}
