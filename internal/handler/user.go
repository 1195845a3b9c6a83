package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"account-directory/internal/middleware"
	"account-directory/internal/models"
	"account-directory/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Usernames are token shaped: letters, digits and underscore.
var tokenPattern = regexp.MustCompile(`^\w+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("token", func(fl validator.FieldLevel) bool {
			return tokenPattern.MatchString(fl.Field().String())
		})
	}
}

type UserHandler struct {
	users service.UserService
	log   *zap.Logger
}

func NewUserHandler(users service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

type listUsersQuery struct {
	Username string `form:"username"`
	IsActive string `form:"isActive"`
	Role     string `form:"role"`
	Fields   string `form:"fields"`
	Sort     string `form:"sort"`
	Limit    int    `form:"limit,default=20"`
	Page     int    `form:"page,default=1"`
}

func (h *UserHandler) List(c *gin.Context) {
	var q listUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	filter := models.UserFilter{
		Username: q.Username,
		Role:     q.Role,
		Sort:     q.Sort,
		Limit:    q.Limit,
		Page:     q.Page,
	}
	if q.IsActive != "" {
		active := q.IsActive == "true"
		filter.IsActive = &active
	}

	page, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if q.Fields != "" {
		c.JSON(http.StatusOK, gin.H{
			"data":  projectUsers(page.Data, q.Fields),
			"pages": page.Pages,
			"items": page.Items,
		})
		return
	}
	c.JSON(http.StatusOK, page)
}

// projectUsers applies the fields query projection ("username email") to
// each document in the page.
func projectUsers(users []models.User, fields string) []map[string]interface{} {
	names := strings.Fields(fields)
	out := make([]map[string]interface{}, len(users))
	for i := range users {
		out[i] = users[i].Project(names...)
	}
	return out
}

func (h *UserHandler) Read(c *gin.Context) {
	user, err := h.users.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ReadSelf returns the caller's own record, projected to username and
// email so the password hash and roles are never exposed.
func (h *UserHandler) ReadSelf(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	user, err := h.users.FindByID(c.Request.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Document not found. That is strange."})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Project("username", "email"))
}

type createUserRequest struct {
	Username string `json:"username" binding:"required,token"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateUserRequest struct {
	IsActive *bool  `json:"isActive" binding:"required"`
	Username string `json:"username" binding:"required,token"`
	Email    string `json:"email" binding:"required,email"`
}

func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), models.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	Username string `json:"username" binding:"required,token"`
	Email    string `json:"email" binding:"required,email"`
}

// UpdateSelf updates the caller's own username and email. The target id
// always comes from the session and activation cannot be changed here.
func (h *UserHandler) UpdateSelf(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	principal := middleware.CurrentUser(c)
	user, err := h.users.Update(c.Request.Context(), principal.ID, models.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Project("username", "email"))
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.users.SetPassword(c.Request.Context(), c.Param("id"), req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetPasswordSelf changes the caller's own password and projects the
// response to username and email.
func (h *UserHandler) SetPasswordSelf(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	principal := middleware.CurrentUser(c)
	user, err := h.users.SetPassword(c.Request.Context(), principal.ID, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Project("username", "email"))
}

func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Success."})
}

// respondError maps service errors onto the api's error bodies.
func (h *UserHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrUsernameInUse):
		c.JSON(http.StatusConflict, gin.H{"message": "Username already in use."})
	case errors.Is(err, models.ErrEmailInUse):
		c.JSON(http.StatusConflict, gin.H{"message": "Email already in use."})
	case errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Document not found."})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An internal server error occurred."})
	}
}
