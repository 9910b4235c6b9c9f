package endpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/upstream"
	"github.com/dexavision/admin-console/util"
)

// The relay endpoints pass a caller-supplied bearer token straight through to
// the upstream backend and forward the reply byte for byte. They perform no
// session handling and never inspect upstream bodies; the session-based
// endpoints above are the first-party surface, the relays serve API clients
// that already hold a provider ID token.

// relayError mirrors the upstream's bare error shape instead of the standard
// envelope so relay replies stay uniform whether they were forwarded or
// generated here.
func relayError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// requireMethod enforces the single allowed method, advertising it on 405.
func requireMethod(c *gin.Context, method string) bool {
	if c.Request.Method == method {
		return true
	}
	c.Header("Allow", method)
	relayError(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	return false
}

// bearerToken extracts the Authorization header when it carries a bearer
// token. The scheme check is case-insensitive; the token itself is opaque.
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	return auth, true
}

func (h *Handler) forward(c *gin.Context, method, path string, body io.Reader) {
	auth, ok := bearerToken(c)
	if !ok {
		relayError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	resp, err := h.Upstream.Forward(c.Request.Context(), method, path, c.Request.URL.Query(), auth, body)
	if err != nil {
		if errors.Is(err, upstream.ErrNotConfigured) {
			relayError(c, http.StatusInternalServerError, "SERVER_URL no está configurado en el entorno.")
			return
		}
		relayError(c, http.StatusBadGateway, "Upstream request failed")
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		relayError(c, http.StatusBadGateway, "Upstream request failed")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, raw)
}

// RelayProfile godoc
// @Summary Relay GET /doctor/profile with a caller-supplied bearer token
// @Tags relay
// @Produce json
// @Router /api/profile [get]
func (h *Handler) RelayProfile(c *gin.Context) {
	if !requireMethod(c, http.MethodGet) {
		return
	}
	h.forward(c, http.MethodGet, "/doctor/profile", nil)
}

// RelayDoctors godoc
// @Summary Relay the doctor list with a caller-supplied bearer token
// @Tags relay
// @Produce json
// @Router /api/admin/doctors [get]
func (h *Handler) RelayDoctors(c *gin.Context) {
	if !requireMethod(c, http.MethodGet) {
		return
	}
	h.forward(c, http.MethodGet, "/admin/doctors", nil)
}

// RelayDoctorDetail godoc
// @Summary Relay one doctor's detail with a caller-supplied bearer token
// @Tags relay
// @Produce json
// @Router /api/admin/doctors/{userId} [get]
func (h *Handler) RelayDoctorDetail(c *gin.Context) {
	if !requireMethod(c, http.MethodGet) {
		return
	}
	userID := c.Param("userId")
	if userID == "" {
		relayError(c, http.StatusBadRequest, "Missing userId")
		return
	}
	h.forward(c, http.MethodGet, "/admin/doctors/"+userID, nil)
}

// RelayReview godoc
// @Summary Relay a review decision with a caller-supplied bearer token
// @Description Validates the action literal locally, then forwards a normalized JSON body
// @Tags relay
// @Accept json
// @Produce json
// @Router /api/admin/doctors/{userId}/review [put]
func (h *Handler) RelayReview(c *gin.Context) {
	if !requireMethod(c, http.MethodPut) {
		return
	}
	userID := c.Param("userId")
	if userID == "" {
		relayError(c, http.StatusBadRequest, "Missing userId")
		return
	}

	var body struct {
		Action  string `json:"action"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		relayError(c, http.StatusBadRequest, "Invalid action")
		return
	}
	if !util.Contains(body.Action, reviewActions) {
		relayError(c, http.StatusBadRequest, "Invalid action")
		return
	}

	normalized, err := json.Marshal(map[string]string{
		"action":  body.Action,
		"message": strings.TrimSpace(body.Message),
	})
	if err != nil {
		relayError(c, http.StatusInternalServerError, "Internal error")
		return
	}
	h.forward(c, http.MethodPut, "/admin/doctors/"+userID+"/review", bytes.NewReader(normalized))
}
