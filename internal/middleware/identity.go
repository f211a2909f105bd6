package middleware

// identity.go holds the helpers for reading the caller back out of the echo
// context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-directory/internal/model"
)

const viewerKey = "viewer"

// ViewerFrom returns the viewer set by JWTAuth or OptionalAuth, or the guest
// viewer on routes without authentication.
func ViewerFrom(c echo.Context) model.Viewer {
	v, _ := c.Get(viewerKey).(model.Viewer)
	return v
}

// userID is the caller as a log field; "guest" when unauthenticated.
func userID(c echo.Context) string {
	v := ViewerFrom(c)
	if !v.Authenticated() {
		return "guest"
	}
	return strconv.FormatUint(v.ProfileID, 10)
}
