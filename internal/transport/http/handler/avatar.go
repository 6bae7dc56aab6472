package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type avatarUsecaser interface {
	GetAvatar(ctx context.Context, id string) (*string, error)
	SetAvatar(ctx context.Context, caller *domain.User, id string, avatar *string) (*domain.User, error)
}

// AvatarHandler serves /profile/avatar and /users/:id/avatar. Every route
// answers 404 when the avatar capability is off.
type AvatarHandler struct {
	avatars avatarUsecaser
	logger  *slog.Logger
}

func NewAvatarHandler(avatars avatarUsecaser, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, logger: logger.With("component", "avatar_handler")}
}

type avatarRequest struct {
	// null clears the avatar
	Avatar *string `json:"avatar" binding:"omitempty,url,max=2048"`
}

type avatarResponse struct {
	Avatar *string `json:"avatar"`
}

// GET /profile/avatar
func (h *AvatarHandler) GetProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	h.get(c, user.ID)
}

// PUT /profile/avatar
func (h *AvatarHandler) UpdateProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	h.set(c, user.ID)
}

// GET /users/:id/avatar
func (h *AvatarHandler) GetUser(c *gin.Context) {
	h.get(c, c.Param("id"))
}

// PUT /users/:id/avatar, staff only unless the id is the caller's.
func (h *AvatarHandler) UpdateUser(c *gin.Context) {
	h.set(c, c.Param("id"))
}

func (h *AvatarHandler) get(c *gin.Context, id string) {
	avatar, err := h.avatars.GetAvatar(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "get avatar", err)
		return
	}
	c.JSON(http.StatusOK, avatarResponse{Avatar: avatar})
}

func (h *AvatarHandler) set(c *gin.Context, id string) {
	var req avatarRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	updated, err := h.avatars.SetAvatar(c.Request.Context(), caller, id, req.Avatar)
	if err != nil {
		writeError(c, h.logger, "set avatar", err)
		return
	}
	c.JSON(http.StatusOK, avatarResponse{Avatar: updated.Avatar})
}
