package handler

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/utils"
)

type AuthHandler struct {
	authService *service.AdminAuthService
}

func NewAuthHandler(authService *service.AdminAuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), c.ClientIP(), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, 200, "Login successful", result)
}

// Logout handles POST /v1/admin/auth/logout (behind the admin middleware).
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), c.GetString("session_id")); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Logged out", nil)
}

// Status handles GET /v1/admin/auth/status. The bearer token is optional.
func (h *AuthHandler) Status(c *gin.Context) {
	status, err := h.authService.Status(c.Request.Context(), c.ClientIP(), bearerToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Guard status", status)
}

// LockoutStream handles GET /v1/admin/auth/lockout/stream. It pushes the
// seconds left on the caller's lockout once per second and ends when the
// lockout clears or the client disconnects.
func (h *AuthHandler) LockoutStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	countdown := h.authService.LockoutCountdown(c.Request.Context(), c.ClientIP())
	c.Stream(func(w io.Writer) bool {
		remaining, ok := <-countdown
		if !ok {
			return false
		}
		secs := int((remaining + time.Second - 1) / time.Second)
		if secs <= 0 {
			c.SSEvent("unlocked", gin.H{"remainingSeconds": 0})
			return false
		}
		c.SSEvent("lockout", gin.H{
			"remainingSeconds": secs,
			"display":          formatCountdown(secs),
		})
		return true
	})
}

func formatCountdown(secs int) string {
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// bearerToken extracts the token from "Authorization: Bearer <jwt>" or, for
// EventSource clients that cannot set headers, from ?token=.
func bearerToken(c *gin.Context) string {
	if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}
