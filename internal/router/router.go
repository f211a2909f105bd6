package router // package router wires handlers and middleware onto the echo instance

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/handler"
	"github.com/iliyamo/member-directory/internal/middleware"
)

// Auth carries what protected groups need to authenticate callers.
type Auth struct {
	Secret string
	Roles  middleware.RoleLookup
	Log    *zap.Logger
}

func (a Auth) required() echo.MiddlewareFunc { return middleware.JWTAuth(a.Secret, a.Roles, a.Log) }

func (a Auth) optional() echo.MiddlewareFunc { return middleware.OptionalAuth(a.Secret, a.Roles, a.Log) }

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler) {
	e.GET("/healthz", handler.Health(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers /v1/auth and the availability probe.  None of them
// require a token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	e.GET("/v1/availability", a.Availability)
}

// bodyLimit leaves room for the multipart envelope around a maxBytes file.
func bodyLimit(maxBytes int64) string {
	return fmt.Sprintf("%dK", maxBytes/1024+64)
}

// RegisterPhotos registers staging uploads, photo reads and owner uploads.
func RegisterPhotos(e *echo.Echo, h *handler.PhotoHandler, auth Auth) {
	limit := echomw.BodyLimit(bodyLimit(h.MaxBytes))
	e.POST("/v1/photos", h.Stage, limit)
	e.GET("/v1/profiles/:id/photos/:slot", h.Get)
	e.PUT("/v1/profiles/:id/photos/:slot", h.Put, limit, auth.required())
}

// RegisterProfiles registers full-profile reads and the member's own
// profile endpoints.
func RegisterProfiles(e *echo.Echo, h *handler.ProfileHandler, auth Auth) {
	e.GET("/v1/profiles/:id", h.Get, auth.optional())

	me := e.Group("/v1/me", auth.required())
	me.GET("", h.Me)
	me.PATCH("", h.UpdateMe)
}
