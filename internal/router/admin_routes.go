package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-directory/internal/handler"
	"github.com/iliyamo/member-directory/internal/middleware"
	"github.com/iliyamo/member-directory/internal/model"
)

// RegisterAdmin registers operator endpoints under /v1/admin.  Every route
// requires a valid token and the admin role as currently stored; the
// services check the role again.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, p *handler.PhotoHandler, auth Auth) {
	g := e.Group("/v1/admin", auth.required(), middleware.RequireRole(model.RoleAdmin))

	g.GET("/notifications", a.Notifications)
	g.DELETE("/notifications/:id", a.Dismiss)

	g.POST("/profiles/:id/decision", a.Decide)
	g.PATCH("/profiles/:id", a.UpdateProfile)
	g.DELETE("/profiles/:id", a.DeleteProfile)
	g.DELETE("/profiles/:id/photos/:slot", p.Clear)

	g.DELETE("/members", a.PurgeMembers)
}
