package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/focus/internal/service"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

type updateSettingsRequest struct {
	FocusSeconds *int64 `json:"focusSeconds"`
	BreakSeconds *int64 `json:"breakSeconds"`
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	settings, apiErr := h.settingsService.Get(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	settings, apiErr := h.settingsService.Update(c.Request.Context(), userID, service.UpdateSettingsInput{
		FocusSeconds: req.FocusSeconds,
		BreakSeconds: req.BreakSeconds,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, settings)
}
