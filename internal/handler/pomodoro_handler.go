package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/service"
)

type PomodoroHandler struct {
	ledgerService *service.LedgerService
}

type saveSessionRequest struct {
	ID              string      `json:"id"`
	PhaseType       model.Phase `json:"phaseType"`
	DurationSeconds int64       `json:"durationSeconds"`
	StartedAt       time.Time   `json:"startedAt"`
	EndedAt         time.Time   `json:"endedAt"`
	Completed       *bool       `json:"completed"`
}

func NewPomodoroHandler(ledgerService *service.LedgerService) *PomodoroHandler {
	return &PomodoroHandler{ledgerService: ledgerService}
}

func (h *PomodoroHandler) SaveSession(c *gin.Context) {
	var req saveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	result, apiErr := h.ledgerService.SaveSession(c.Request.Context(), userID, service.SaveSessionInput{
		ID:              req.ID,
		PhaseType:       req.PhaseType,
		DurationSeconds: req.DurationSeconds,
		StartedAt:       req.StartedAt,
		EndedAt:         req.EndedAt,
		Completed:       completed,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *PomodoroHandler) Daily(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, apiErr := h.ledgerService.Daily(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) Weekly(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, apiErr := h.ledgerService.Weekly(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) Streak(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, apiErr := h.ledgerService.Streak(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) GetHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit := 50
	rawLimit := c.Query("limit")
	if rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	sessions, apiErr := h.ledgerService.History(c.Request.Context(), userID, limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
