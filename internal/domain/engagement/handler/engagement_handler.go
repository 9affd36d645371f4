package handler

import (
	"errors"
	"net/http"
	"strconv"

	"blog_engine/internal/domain/engagement/service"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/response"
	"blog_engine/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngagementHandler 点赞、收藏、关注与作者主页
type EngagementHandler struct {
	service service.EngagementService
}

func NewEngagementHandler(s service.EngagementService) *EngagementHandler {
	return &EngagementHandler{service: s}
}

// ToggleLike 点赞/取消点赞
// @Summary 切换点赞
// @Tags Engagement
// @Produce json
// @Security Bearer
// @Param id path int true "文章ID"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} response.Response
// @Router /post/{id}/like/ [post]
func (h *EngagementHandler) ToggleLike(c *gin.Context) {
	postID, ok := pathID(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)

	result, err := h.service.ToggleLike(c.Request.Context(), userID, postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ToggleBookmark 收藏/取消收藏
// @Summary 切换收藏
// @Tags Engagement
// @Produce json
// @Security Bearer
// @Param id path int true "文章ID"
// @Success 200 {object} service.BookmarkResult
// @Failure 404 {object} response.Response
// @Router /post/{id}/bookmark/ [post]
func (h *EngagementHandler) ToggleBookmark(c *gin.Context) {
	postID, ok := pathID(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)

	result, err := h.service.ToggleBookmark(c.Request.Context(), userID, postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ToggleFollow 关注/取消关注作者
// @Summary 切换关注
// @Tags Engagement
// @Produce json
// @Security Bearer
// @Param username path string true "用户名"
// @Success 200 {object} service.FollowResult
// @Failure 400 {object} map[string]string
// @Router /user/{username}/follow/ [post]
func (h *EngagementHandler) ToggleFollow(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	username := c.GetString(middleware.ContextUsername)

	result, err := h.service.ToggleFollow(c.Request.Context(), userID, username, c.Param("username"))
	if err != nil {
		if errors.Is(err, service.ErrSelfFollow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot follow yourself"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Bookmarks 我的收藏
// @Summary 收藏列表
// @Tags Engagement
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /bookmarks/ [get]
func (h *EngagementHandler) Bookmarks(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)

	result, err := h.service.Bookmarks(c.Request.Context(), userID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// AuthorPage 作者主页
// @Summary 作者主页
// @Tags Engagement
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码"
// @Success 200 {object} response.Response{data=service.AuthorPage}
// @Failure 404 {object} response.Response
// @Router /user/{username}/ [get]
func (h *EngagementHandler) AuthorPage(c *gin.Context) {
	viewerID, _ := middleware.CurrentUserID(c)
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)

	result, err := h.service.AuthorPage(c.Request.Context(), c.Param("username"), viewerID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (h *EngagementHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPostNotFound, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.ErrUserNotFound, err.Error())
	case errors.Is(err, service.ErrSelfFollow):
		response.Error(c, http.StatusBadRequest, response.ErrSelfFollow, err.Error())
	default:
		logger.L().Error("engagement request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
