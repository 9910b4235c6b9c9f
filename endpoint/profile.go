package endpoint

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/middleware"
	"github.com/dexavision/admin-console/util"
)

// GetProfile godoc
// @Summary Load the caller's application profile
// @Description Returns the cached profile for the session, fetching it from the backend on first use
// @Tags profile
// @Produce json
// @Success 200 {object} util.APIResponse
// @Failure 503 {object} util.APIResponse
// @Router /dashboard/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "No hay sesión activa.",
			Err: fmt.Errorf("no session"),
		})
		return
	}

	token := h.Sessions.Token(c.Request.Context(), sess)
	p, errMsg := h.Profiles.Get(c.Request.Context(), sess.ID, token)
	if p == nil {
		util.CallServiceUnavailable(c, util.APIErrorParams{
			Msg: errMsg,
			Err: fmt.Errorf("profile unavailable"),
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Profile retrieved",
		Data: p,
	})
}

// RefreshProfile godoc
// @Summary Retry loading the caller's profile
// @Description Bypasses the cache and fetches the profile again. Backs the retry button on the profile error panel.
// @Tags profile
// @Produce json
// @Success 200 {object} util.APIResponse
// @Failure 503 {object} util.APIResponse
// @Router /dashboard/profile/refresh [post]
func (h *Handler) RefreshProfile(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "No hay sesión activa.",
			Err: fmt.Errorf("no session"),
		})
		return
	}

	token := h.Sessions.Token(c.Request.Context(), sess)
	p, errMsg := h.Profiles.Refresh(c.Request.Context(), sess.ID, token)
	if p == nil {
		util.CallServiceUnavailable(c, util.APIErrorParams{
			Msg: errMsg,
			Err: fmt.Errorf("profile unavailable"),
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Profile refreshed",
		Data: p,
	})
}
