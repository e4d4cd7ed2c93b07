package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/focus/internal/service"
)

// TokenHandler lets an already authenticated client refresh its bearer token.
type TokenHandler struct {
	tokenService *service.TokenService
}

func NewTokenHandler(tokenService *service.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

func (h *TokenHandler) Refresh(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	issued, apiErr := h.tokenService.Issue(userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, issued)
}
