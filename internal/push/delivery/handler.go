package delivery

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	authdelivery "karmaterra-backend/internal/auth/delivery"
	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/dto"
	"karmaterra-backend/internal/push/repository"
	"karmaterra-backend/internal/push/usecase"

	"github.com/gin-gonic/gin"
)

// Enqueuer accepts dispatch jobs without blocking
type Enqueuer interface {
	Enqueue(job usecase.DispatchJob) bool
}

// PushHandler handles device token, notification history and routing requests
type PushHandler struct {
	tokens        repository.TokenRepository
	notifications repository.NotificationRepository
	actions       *usecase.ActionHandler
	queue         Enqueuer
}

// NewPushHandler creates a new PushHandler
func NewPushHandler(
	tokens repository.TokenRepository,
	notifications repository.NotificationRepository,
	actions *usecase.ActionHandler,
	queue Enqueuer,
) *PushHandler {
	return &PushHandler{
		tokens:        tokens,
		notifications: notifications,
		actions:       actions,
		queue:         queue,
	}
}

// RegisterToken stores the caller's device token
// POST /api/push/tokens
func (h *PushHandler) RegisterToken(c *gin.Context) {
	userID := c.GetString(authdelivery.ContextUserID)

	var req dto.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	platform, ok := domain.ParsePlatform(req.Platform)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform must be android, ios or web"})
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if err := h.tokens.Upsert(c.Request.Context(), userID, token, platform, time.Now()); err != nil {
		log.Printf("[PushToken] Upsert failed for user %s: %v", userID, err)
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error(), "kind": repository.KindOf(err).String()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token registered successfully"})
}

// GetTokens lists the caller's device tokens
// GET /api/push/tokens
func (h *PushHandler) GetTokens(c *gin.Context) {
	userID := c.GetString(authdelivery.ContextUserID)

	rows, err := h.tokens.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	tokens := make([]dto.TokenResponse, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, dto.NewTokenResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// DeleteToken removes (caller, token); deleting a missing pair still succeeds
// DELETE /api/push/tokens/:token
func (h *PushHandler) DeleteToken(c *gin.Context) {
	userID := c.GetString(authdelivery.ContextUserID)
	token := c.Param("token")

	if err := h.tokens.Delete(c.Request.Context(), userID, token); err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error(), "kind": repository.KindOf(err).String()})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetNotifications returns the caller's notification history
// GET /api/push/notifications?unread=true&limit=20&offset=0
func (h *PushHandler) GetNotifications(c *gin.Context) {
	userID := c.GetString(authdelivery.ContextUserID)

	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.notifications.ListByUserID(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	c.JSON(http.StatusOK, dto.NotificationListResponse{Notifications: items, Total: total})
}

// MarkRead records the read receipt for one of the caller's notifications
// POST /api/push/notifications/:id/read
func (h *PushHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(authdelivery.ContextUserID)
	id := c.Param("id")

	if err := h.notifications.MarkRead(c.Request.Context(), userID, id, time.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error(), "kind": repository.KindOf(err).String()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Route resolves where a tapped notification should lead and marks it read
// POST /api/push/route
func (h *PushHandler) Route(c *gin.Context) {
	userID := c.GetString(authdelivery.ContextUserID)

	var req dto.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dest := h.actions.HandleTap(c.Request.Context(), userID, map[string]string{
		domain.DataKeyLink:           req.Link,
		domain.DataKeyNotificationID: req.NotificationID,
	})
	c.JSON(http.StatusOK, dest)
}

// SendNotification queues a notification for a user
// POST /api/admin/notifications
func (h *PushHandler) SendNotification(c *gin.Context) {
	var req dto.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queued := h.queue.Enqueue(usecase.DispatchJob{Request: usecase.SendRequest{
		UserID:   req.UserID,
		Title:    req.Title,
		Body:     req.Body,
		Link:     req.Link,
		ImageURL: req.ImageURL,
	}})
	if !queued {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch queue is full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Notification queued"})
}

// storeErrorStatus maps a tagged store error to the status a client retries on
func storeErrorStatus(err error) int {
	switch repository.KindOf(err) {
	case repository.KindConflict:
		return http.StatusConflict
	case repository.KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}
