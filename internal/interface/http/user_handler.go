package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/foodmanager/user-service/internal/application"
	"github.com/foodmanager/user-service/internal/domain/apperrors"
	"github.com/foodmanager/user-service/internal/domain/entity"
	"github.com/foodmanager/user-service/pkg/response"
	"github.com/foodmanager/user-service/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type userRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Login    string `json:"login" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,pwd"`
	Address  string `json:"address" binding:"omitempty,max=255"`
	UserType string `json:"user_type" binding:"omitempty,usertype"`
}

type userUpdateRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Login    string `json:"login" binding:"required,min=3,max=50"`
	Address  string `json:"address" binding:"omitempty,max=255"`
	UserType string `json:"user_type" binding:"omitempty,usertype"`
}

type userPatchRequest struct {
	Name    string `json:"name" binding:"omitempty,min=2,max=100"`
	Email   string `json:"email" binding:"omitempty,email"`
	Login   string `json:"login" binding:"omitempty,min=3,max=50"`
	Address string `json:"address" binding:"omitempty,max=255"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
}

// userResponse is the outbound representation. It never carries the
// password field.
type userResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Login       string    `json:"login"`
	Address     string    `json:"address,omitempty"`
	UserType    string    `json:"user_type,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func toUserResponse(u *entity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Login:       u.Login,
		Address:     u.Address,
		UserType:    u.UserType.String(),
		AvatarURL:   u.AvatarURL,
		LastUpdated: u.LastUpdated,
	}
}

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicateEmail), errors.Is(err, apperrors.ErrDuplicateLogin):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return 0, false
	}
	return id, true
}

// Register POST /api/users
func (h *UserHandler) Register(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u := &entity.User{
		Name:     req.Name,
		Email:    req.Email,
		Login:    req.Login,
		Password: req.Password,
		Address:  req.Address,
		UserType: entity.UserType(req.UserType),
	}
	created, err := h.Svc.Create(c.Request.Context(), u)
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusCreated, toUserResponse(created), "user created", nil)
}

// List GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.Svc.GetAll(c.Request.Context())
	if err != nil {
		response.Error[any](c, statusFor(err), "failed to list users", nil)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	response.Success(c, http.StatusOK, out, "users", map[string]any{"count": len(out)})
}

// Get GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), "user", nil)
}

// Update PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u := &entity.User{
		Name:     req.Name,
		Email:    req.Email,
		Login:    req.Login,
		Address:  req.Address,
		UserType: entity.UserType(req.UserType),
	}
	updated, err := h.Svc.Update(c.Request.Context(), id, u)
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(updated), "user updated", nil)
}

// Patch PATCH /api/users/:id
func (h *UserHandler) Patch(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req userPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	updated, err := h.Svc.PartialUpdate(c.Request.Context(), id, &userapp.PartialUpdateInput{
		Name:    req.Name,
		Email:   req.Email,
		Login:   req.Login,
		Address: req.Address,
	})
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(updated), "user updated", nil)
}

// Delete DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Svc.DeleteByID(c.Request.Context(), id); err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "user deleted", nil)
}

// ChangePassword PATCH /api/users/:id/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password changed", nil)
}

// Search GET /api/users/search?q=...&size=...
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		response.Error[any](c, http.StatusBadGateway, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// UploadAvatar POST /api/users/:id/avatar (multipart form, field "file")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing file", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), id, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		response.Error[any](c, statusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, map[string]any{"avatar_url": url}, "avatar uploaded", nil)
}
