package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/repository"
	"github.com/ErlanBelekov/user-management/internal/transport/http/middleware"
	"github.com/ErlanBelekov/user-management/internal/usecase"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
	IsStaff       bool      `json:"is_staff"`
	EmailVerified bool      `json:"email_verified"`
	DateJoined    time.Time `json:"date_joined"`
	LastLogin     time.Time `json:"last_login"`
	Avatar        *string   `json:"avatar,omitempty"`
}

// newUserResponse hides the avatar field unless the avatar capability is on.
func newUserResponse(u *domain.User, caps domain.Capabilities) userResponse {
	resp := userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		IsActive:      u.IsActive,
		IsStaff:       u.IsStaff,
		EmailVerified: u.EmailVerified,
		DateJoined:    u.DateJoined,
		LastLogin:     u.LastLogin,
	}
	if caps.HasAvatar {
		resp.Avatar = u.Avatar
	}
	return resp
}

// userDirectory is the subset of AccountUsecase the user handler needs.
type userDirectory interface {
	ListUsers(ctx context.Context, in repository.ListUsersInput) ([]*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, caller *domain.User, in usecase.CreateUserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, caller *domain.User, id, name string) (*domain.User, error)
	DeleteUser(ctx context.Context, caller *domain.User, id string) error
}

type UserHandler struct {
	users  userDirectory
	caps   domain.Capabilities
	logger *slog.Logger
}

func NewUserHandler(users userDirectory, caps domain.Capabilities, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, caps: caps, logger: logger.With("component", "user_handler")}
}

type listUsersResponse struct {
	Users      []userResponse `json:"users"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// GET /users?cursor=<email>&limit=<n>
func (h *UserHandler) List(c *gin.Context) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeFields(c, map[string][]string{"limit": {"Invalid value."}})
			return
		}
		limit = min(n, maxPageSize)
	}

	users, err := h.users.ListUsers(c.Request.Context(), repository.ListUsersInput{
		CursorEmail: c.Query("cursor"),
		Limit:       limit,
	})
	if err != nil {
		writeError(c, h.logger, "list users", err)
		return
	}

	resp := listUsersResponse{Users: make([]userResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, newUserResponse(u, h.caps))
	}
	if len(users) == limit {
		resp.NextCursor = users[len(users)-1].Email
	}
	c.JSON(http.StatusOK, resp)
}

// GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u, h.caps))
}

type createUserRequest struct {
	Name     string `json:"name"     binding:"required,max=255"`
	Email    string `json:"email"    binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
	IsStaff  bool   `json:"is_staff"`
}

// POST /users, staff only.
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	u, err := h.users.CreateUser(c.Request.Context(), caller, usecase.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IsStaff:  req.IsStaff,
	})
	if err != nil {
		writeError(c, h.logger, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(u, h.caps))
}

type updateUserRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// PATCH /users/:id, staff only.
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	u, err := h.users.UpdateUser(c.Request.Context(), caller, c.Param("id"), req.Name)
	if err != nil {
		writeError(c, h.logger, "update user", err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u, h.caps))
}

// DELETE /users/:id, staff only.
func (h *UserHandler) Delete(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	if err := h.users.DeleteUser(c.Request.Context(), caller, c.Param("id")); err != nil {
		writeError(c, h.logger, "delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
