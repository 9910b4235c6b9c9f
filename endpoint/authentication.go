package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/guard"
	"github.com/dexavision/admin-console/identity"
	"github.com/dexavision/admin-console/middleware"
	"github.com/dexavision/admin-console/util"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type loginResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	Next      string    `json:"next"`
}

// Login godoc
// @Summary Sign in with email and password
// @Description Exchanges credentials with the identity provider and opens a server-side session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} util.APIResponse
// @Failure 400 {object} util.APIResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Correo y contraseña son obligatorios.",
			Err: err,
		})
		return
	}

	creds, err := h.IDP.SignInWithPassword(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.failLogin(c, req.Email, err)
		return
	}
	h.finishLogin(c, creds)
}

// LoginWithGoogle godoc
// @Summary Sign in with a Google ID token
// @Description Exchanges an OAuth ID token from the Google popup for a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body googleLoginRequest true "Google ID token"
// @Success 200 {object} util.APIResponse
// @Failure 400 {object} util.APIResponse
// @Router /auth/google [post]
func (h *Handler) LoginWithGoogle(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Falta el token de Google.",
			Err: err,
		})
		return
	}

	creds, err := h.IDP.SignInWithIDP(c.Request.Context(), req.IDToken)
	if err != nil {
		h.failLogin(c, "", err)
		return
	}
	h.finishLogin(c, creds)
}

func (h *Handler) failLogin(c *gin.Context, email string, err error) {
	util.LogLoginFailure(email, c.ClientIP(), c.Request.UserAgent(), err.Error())

	if errors.Is(err, identity.ErrNotConfigured) {
		util.CallServerError(c, util.APIErrorParams{
			Msg: identity.MsgNotConfigured,
			Err: err,
		})
		return
	}
	util.CallUserError(c, util.APIErrorParams{
		Msg: identity.UserMessage(err),
		Err: err,
	})
}

func (h *Handler) finishLogin(c *gin.Context, creds *identity.Credentials) {
	sess, err := h.Sessions.Create(c.Request.Context(), creds, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "No se pudo crear la sesión.",
			Err: err,
		})
		return
	}

	cookie, err := util.SignSessionCookie(sess.ID, sess.ExpiresAt)
	if err != nil {
		_ = h.Sessions.Delete(c.Request.Context(), sess)
		util.CallServerError(c, util.APIErrorParams{
			Msg: "No se pudo crear la sesión.",
			Err: err,
		})
		return
	}
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetCookie(middleware.SessionCookieName, cookie, maxAge, "/", "", false, true)

	util.LogLoginSuccess(sess.UserID, sess.Email, c.ClientIP(), c.Request.UserAgent())
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Sesión iniciada",
		Data: loginResponse{
			UserID:    sess.UserID,
			Email:     sess.Email,
			ExpiresAt: sess.ExpiresAt,
			Next:      guard.SafeNext(c.Query("next")),
		},
	})
}

// Logout godoc
// @Summary Sign out
// @Description Destroys the session and expires the cookie. The profile cache entry is dropped first so it never outlives the session.
// @Tags auth
// @Produce json
// @Success 200 {object} util.APIResponse
// @Router /auth/logout [delete]
func (h *Handler) Logout(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if ok {
		h.Profiles.Clear(sess.ID)
		h.Grids.Drop(sess.ID)
		if err := h.Sessions.Delete(c.Request.Context(), sess); err != nil {
			middleware.ClearSessionCookie(c)
			util.CallServerError(c, util.APIErrorParams{
				Msg: "No se pudo cerrar la sesión por completo.",
				Err: err,
			})
			return
		}
		util.LogLogout(sess.UserID, sess.Email, c.ClientIP(), c.Request.UserAgent())
	}
	middleware.ClearSessionCookie(c)
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Sesión cerrada",
		Data: map[string]string{"next": "/login"},
	})
}

// ValidateSession godoc
// @Summary Report the current session
// @Tags auth
// @Produce json
// @Success 200 {object} util.APIResponse
// @Failure 401 {object} util.APIResponse
// @Router /auth/session [get]
func (h *Handler) ValidateSession(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "No hay sesión activa.",
			Err: fmt.Errorf("no session"),
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Sesión activa",
		Data: map[string]interface{}{
			"userId":    sess.UserID,
			"email":     sess.Email,
			"expiresAt": sess.ExpiresAt,
		},
	})
}

// Root redirects the bare origin to the dashboard for signed-in callers and
// to the login page for everyone else.
func (h *Handler) Root(c *gin.Context) {
	if _, ok := middleware.GetSession(c); ok {
		util.CallRedirect(c, guard.DefaultNextPath)
		return
	}
	util.CallRedirect(c, "/login")
}
