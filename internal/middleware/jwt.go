package middleware // reusable HTTP middleware for the echo server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/utils"
)

// RoleLookup loads the current role of a profile; *repository.ProfileRepo
// implements it.
type RoleLookup interface {
	GetRole(ctx context.Context, id uint64) (model.Role, error)
}

// JWTAuth validates a Bearer access token and stores the caller as a
// model.Viewer in the context.  The token only names the profile; the role
// is read from the database on every request so a demoted operator loses
// access immediately.
func JWTAuth(secret string, roles RoleLookup, log *zap.Logger) echo.MiddlewareFunc {
	return auth(secret, roles, log, true)
}

// OptionalAuth is JWTAuth for routes guests may also call.  A missing
// header yields the guest viewer; a bad token is still rejected.
func OptionalAuth(secret string, roles RoleLookup, log *zap.Logger) echo.MiddlewareFunc {
	return auth(secret, roles, log, false)
}

func auth(secret string, roles RoleLookup, log *zap.Logger, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" && !required {
				c.Set(viewerKey, model.Viewer{})
				return next(c)
			}
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			role, err := roles.GetRole(c.Request().Context(), id)
			if errors.Is(err, repository.ErrNotFound) {
				// profile deleted after the token was issued
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			if err != nil {
				log.Error("role lookup failed", zap.Uint64("profile_id", id), zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
			}
			c.Set(viewerKey, model.Viewer{ProfileID: id, Role: role})
			return next(c)
		}
	}
}
