package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/middleware"
)

// PhotoHandler serves photo uploads and reads.
type PhotoHandler struct {
	Photos   Photos
	MaxBytes int64
	Log      *zap.Logger
}

func NewPhotoHandler(photos Photos, maxBytes int64, log *zap.Logger) *PhotoHandler {
	return &PhotoHandler{Photos: photos, MaxBytes: maxBytes, Log: log}
}

// readUpload returns the multipart "file" part, bounded by MaxBytes.
func (h *PhotoHandler) readUpload(c echo.Context) ([]byte, int, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.MaxBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	if int64(len(data)) > h.MaxBytes {
		return nil, http.StatusRequestEntityTooLarge, nil
	}
	return data, 0, nil
}

// Stage handles POST /v1/photos (multipart slot, file) for registrations
// that do not have a profile yet.
func (h *PhotoHandler) Stage(c echo.Context) error {
	slot, err := strconv.Atoi(c.FormValue("slot"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot"})
	}
	data, status, err := h.readUpload(c)
	if status == http.StatusRequestEntityTooLarge {
		return c.JSON(status, echo.Map{"error": "file too large"})
	}
	if err != nil {
		return c.JSON(status, echo.Map{"error": "file required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	d, err := h.Photos.Stage(ctx, slot, data)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// Put handles PUT /v1/profiles/:id/photos/:slot for the owner or an
// operator.
func (h *PhotoHandler) Put(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	slot, ok := paramSlot(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot"})
	}
	if v := middleware.ViewerFrom(c); !v.IsOperator() && v.ProfileID != id {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	data, status, err := h.readUpload(c)
	if status == http.StatusRequestEntityTooLarge {
		return c.JSON(status, echo.Map{"error": "file too large"})
	}
	if err != nil {
		return c.JSON(status, echo.Map{"error": "file required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	d, err := h.Photos.Put(ctx, id, slot, data)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Get handles GET /v1/profiles/:id/photos/:slot with bytes or a 302.
func (h *PhotoHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	slot, ok := paramSlot(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Photos.Resolve(ctx, id, slot)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if res.IsRedirect() {
		return c.Redirect(http.StatusFound, res.Redirect)
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Blob(http.StatusOK, res.ContentType, res.Bytes)
}

// Clear handles DELETE /v1/admin/profiles/:id/photos/:slot.
func (h *PhotoHandler) Clear(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	slot, ok := paramSlot(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Photos.Clear(ctx, id, slot); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
