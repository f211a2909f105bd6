package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/config"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/service/admission"
	"github.com/iliyamo/member-directory/internal/service/credential"
	"github.com/iliyamo/member-directory/internal/utils"
)

// AuthHandler serves registration, login and the token flows.
type AuthHandler struct {
	Cfg   config.Config
	Creds Credentials
	Flow  Workflow
	Log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, creds Credentials, flow Workflow, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Creds: creds, Flow: flow, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type emailReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Profile model.PublicProfile `json:"profile"`
	Access  tokenPart           `json:"access"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req admission.Registration
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Flow.Submit(ctx, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Login handles POST /v1/auth/login.  Members must have verified their email.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Creds.Verify(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := credential.CanAuthenticate(p); err != nil {
		return respondError(c, h.Log, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, p.ID, time.Duration(h.Cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, authResp{
		Profile: p.Public(true),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// VerifyEmail handles GET /v1/auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	id, err := h.Creds.Consume(ctx, c.QueryParam("token"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"profile_id": id, "verified": true})
}

// ResendVerification handles POST /v1/auth/resend-verification.  The answer
// is the same whether or not the email is registered.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Flow.ResendVerification(ctx, req.Email); err != nil {
		h.Log.Warn("resend verification failed", zap.Error(err))
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "if the address is awaiting verification, a new link has been sent"})
}

// ForgotPassword handles POST /v1/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Flow.ForgotPassword(ctx, req.Email); err != nil {
		h.Log.Warn("password reset request failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the address is registered, a reset link has been sent"})
}

// ResetPassword handles POST /v1/auth/reset-password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Creds.CompleteReset(ctx, req.Token, req.Password); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Availability handles GET /v1/availability?email=&phone=.
func (h *AuthHandler) Availability(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.Flow.CheckAvailability(ctx, c.QueryParam("email"), c.QueryParam("phone"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}
