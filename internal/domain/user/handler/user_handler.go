package handler

import (
	"errors"
	"net/http"

	"blog_engine/internal/domain/user/model"
	"blog_engine/internal/domain/user/service"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler 用户处理器
type UserHandler struct {
	service     service.UserService
	storage     uploader.Storage
	maxUploadMB int64
}

// NewUserHandler 创建处理器
func NewUserHandler(s service.UserService, storage uploader.Storage, maxUploadMB int64) *UserHandler {
	return &UserHandler{service: s, storage: storage, maxUploadMB: maxUploadMB}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Username string `json:"username" form:"username" binding:"required,min=3,max=150"`
	Password string `json:"password" form:"password" binding:"required,min=8,max=128"`
	Email    string `json:"email" form:"email" binding:"required,email,max=254"`
}

// LoginInput 登录输入
type LoginInput struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// ProfileInput 资料更新输入，支持 multipart（带 image 文件）或 JSON
type ProfileInput struct {
	Bio      *string `json:"bio" form:"bio" binding:"omitempty,max=500"`
	Location *string `json:"location" form:"location" binding:"omitempty,max=100"`
	Website  *string `json:"website" form:"website" binding:"omitempty,max=200"`
}

// ProfileResponse 本人资料，额外包含邮箱
type ProfileResponse struct {
	*model.User
	Email string `json:"email"`
}

// Register 处理注册请求
// @Summary 注册
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body RegisterInput true "注册信息"
// @Success 201 {object} response.Response{data=model.User}
// @Failure 409 {object} response.Response
// @Router /auth/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	user, err := h.service.Register(c.Request.Context(), input.Username, input.Email, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			response.Error(c, http.StatusConflict, response.ErrUserExists, err.Error())
			return
		}
		logger.L().Error("register failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Registration failed")
		return
	}

	response.Created(c, user)
}

// Login 处理登录请求
// @Summary 登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body LoginInput true "登录信息"
// @Success 200 {object} response.Response{data=service.LoginResult}
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, err.Error())
			return
		}
		logger.L().Error("login failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Login failed")
		return
	}

	response.Success(c, result)
}

// GetProfile 当前用户资料
// @Summary 获取本人资料
// @Tags Profile
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=ProfileResponse}
// @Router /profile/ [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ProfileResponse{User: user, Email: user.Email})
}

// UpdateProfile 更新当前用户资料
// @Summary 更新本人资料
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param bio formData string false "简介"
// @Param location formData string false "所在地"
// @Param website formData string false "个人网站"
// @Param image formData file false "头像"
// @Success 200 {object} response.Response{data=ProfileResponse}
// @Router /profile/ [post]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var input ProfileInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if input.Website != nil && *input.Website != "" {
		if err := validateURL(*input.Website); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	update := service.ProfileUpdate{Bio: input.Bio, Location: input.Location, Website: input.Website}

	if file, err := c.FormFile("image"); err == nil {
		key, err := uploader.SaveUpload(c.Request.Context(), h.storage, uploader.AvatarDir, file, h.maxUploadMB)
		if err != nil {
			if errors.Is(err, uploader.ErrFileTooLarge) || errors.Is(err, uploader.ErrUnsupportedImage) {
				response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
				return
			}
			logger.L().Error("avatar upload failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Upload failed")
			return
		}
		update.ImageKey = key
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ProfileResponse{User: user, Email: user.Email})
}

func (h *UserHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUserNotFound) {
		response.Error(c, http.StatusNotFound, response.ErrUserNotFound, err.Error())
		return
	}
	logger.L().Error("user request failed", zap.Error(err))
	response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
}
