package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/middleware"
	"github.com/iliyamo/member-directory/internal/service/admission"
)

// AdminHandler serves the operator inbox and profile administration.  The
// workflow re-checks the operator role on every call.
type AdminHandler struct {
	Flow Workflow
	Log  *zap.Logger
}

func NewAdminHandler(flow Workflow, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Flow: flow, Log: log}
}

type decisionReq struct {
	Outcome string `json:"outcome"` // accepted | rejected
}

// Notifications handles GET /v1/admin/notifications.
func (h *AdminHandler) Notifications(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Flow.ListNotifications(ctx, middleware.ViewerFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}

// Dismiss handles DELETE /v1/admin/notifications/:id.
func (h *AdminHandler) Dismiss(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Flow.Dismiss(ctx, middleware.ViewerFrom(c), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Decide handles POST /v1/admin/profiles/:id/decision.
func (h *AdminHandler) Decide(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Flow.Decide(ctx, middleware.ViewerFrom(c), id, req.Outcome); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"profile_id": id, "moderation_status": req.Outcome})
}

// UpdateProfile handles PATCH /v1/admin/profiles/:id.
func (h *AdminHandler) UpdateProfile(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req admission.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Flow.UpdateProfile(ctx, middleware.ViewerFrom(c), id, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// DeleteProfile handles DELETE /v1/admin/profiles/:id.  Irreversible.
func (h *AdminHandler) DeleteProfile(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Flow.Delete(ctx, middleware.ViewerFrom(c), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PurgeMembers handles DELETE /v1/admin/members?confirm=true.
func (h *AdminHandler) PurgeMembers(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "confirm=true required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	n, err := h.Flow.PurgeMembers(ctx, middleware.ViewerFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}
