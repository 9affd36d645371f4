package handler

import (
	"errors"
	"net/http"

	"blog_engine/internal/domain/newsletter/service"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewsletterHandler 邮件订阅与联系留言
type NewsletterHandler struct {
	service service.NewsletterService
}

func NewNewsletterHandler(s service.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{service: s}
}

// SubscribeRequest 订阅请求
type SubscribeRequest struct {
	Email string `form:"email" json:"email" binding:"required,email,max=254"`
}

// ContactRequest 联系留言
type ContactRequest struct {
	Name    string `form:"name" json:"name" binding:"required,max=100"`
	Email   string `form:"email" json:"email" binding:"required,email,max=254"`
	Subject string `form:"subject" json:"subject" binding:"required,max=200"`
	Message string `form:"message" json:"message" binding:"required,min=10"`
}

// Subscribe 订阅
// @Summary 订阅邮件
// @Tags Newsletter
// @Accept json
// @Produce json
// @Param input body SubscribeRequest true "邮箱"
// @Success 200 {object} service.SubscribeResult
// @Failure 400 {object} service.SubscribeResult
// @Router /newsletter/subscribe/ [post]
func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, service.SubscribeResult{Success: false, Message: service.MsgInvalidEmail})
		return
	}

	result, err := h.service.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		logger.L().Error("newsletter subscribe failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Unsubscribe 凭令牌取消订阅
// @Summary 取消订阅
// @Tags Newsletter
// @Produce json
// @Param token path string true "取消订阅令牌"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /newsletter/unsubscribe/{token}/ [get]
func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	if err := h.service.Unsubscribe(c.Request.Context(), c.Param("token")); err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrSubscriptionNotFound, err.Error())
			return
		}
		logger.L().Error("newsletter unsubscribe failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
		return
	}
	response.Success(c, gin.H{"message": "Successfully unsubscribed from newsletter."})
}

// Contact 提交联系留言
// @Summary 联系我们
// @Tags Newsletter
// @Accept json
// @Produce json
// @Param input body ContactRequest true "留言"
// @Success 201 {object} response.Response{data=model.ContactMessage}
// @Failure 400 {object} response.Response
// @Router /contact/ [post]
func (h *NewsletterHandler) Contact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	msg, err := h.service.Contact(c.Request.Context(), service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		logger.L().Error("contact message failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
		return
	}
	response.Created(c, msg)
}
