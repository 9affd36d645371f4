package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"blog_engine/internal/domain/post/service"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/session"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/response"
	"blog_engine/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PostHandler 文章与评论处理器
type PostHandler struct {
	service     service.PostService
	comments    service.CommentService
	views       session.ViewTracker
	storage     uploader.Storage
	maxUploadMB int64
}

func NewPostHandler(s service.PostService, comments service.CommentService, views session.ViewTracker, storage uploader.Storage, maxUploadMB int64) *PostHandler {
	return &PostHandler{service: s, comments: comments, views: views, storage: storage, maxUploadMB: maxUploadMB}
}

// PostForm 文章表单，支持 multipart（带 featured_image）或 JSON
type PostForm struct {
	Title           string     `form:"title" json:"title" binding:"required,min=10,max=200"`
	Content         string     `form:"content" json:"content" binding:"required,min=50"`
	Excerpt         string     `form:"excerpt" json:"excerpt" binding:"max=300"`
	Category        string     `form:"category" json:"category" binding:"max=50"`
	Tags            []string   `form:"tags" json:"tags" binding:"max=20,dive,max=50"`
	Status          string     `form:"status" json:"status" binding:"omitempty,oneof=draft published scheduled"`
	PublishDate     *time.Time `form:"publish_date" json:"publishDate" time_format:"2006-01-02T15:04:05Z07:00"`
	IsFeatured      bool       `form:"is_featured" json:"isFeatured"`
	IsPinned        bool       `form:"is_pinned" json:"isPinned"`
	AllowComments   *bool      `form:"allow_comments" json:"allowComments"`
	MetaDescription string     `form:"meta_description" json:"metaDescription" binding:"max=160"`
	MetaKeywords    string     `form:"meta_keywords" json:"metaKeywords" binding:"max=255"`
	Action          string     `form:"action" json:"action" binding:"omitempty,oneof=save_draft publish"`
}

func (f PostForm) input() service.PostInput {
	return service.PostInput{
		Title:           f.Title,
		Content:         f.Content,
		Excerpt:         f.Excerpt,
		MetaDescription: f.MetaDescription,
		MetaKeywords:    f.MetaKeywords,
		Category:        f.Category,
		Tags:            f.Tags,
		IsFeatured:      f.IsFeatured,
		IsPinned:        f.IsPinned,
		AllowComments:   f.AllowComments,
		Status:          f.Status,
		PublishDate:     f.PublishDate,
		Action:          f.Action,
	}
}

// CommentForm 评论表单
type CommentForm struct {
	Content  string `form:"content" json:"content" binding:"required,min=2,max=1000"`
	ParentID *uint  `form:"parent_id" json:"parentId"`
}

// SearchQuery 搜索参数
type SearchQuery struct {
	Q        string `form:"q"`
	Category uint   `form:"category"`
	Tag      uint   `form:"tag"`
	utils.Pagination
}

// Home 首页
// @Summary 文章列表（首页）
// @Tags Post
// @Produce json
// @Param q query string false "搜索"
// @Param category query string false "分类 slug"
// @Param tag query string false "标签 slug"
// @Param sort query string false "newest|oldest|popular|trending"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response{data=service.HomePage}
// @Router / [get]
func (h *PostHandler) Home(c *gin.Context) {
	var params service.ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	page, err := h.service.Home(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, page)
}

// Search 搜索（含作者用户名）
// @Summary 搜索文章
// @Tags Post
// @Produce json
// @Param q query string false "关键字"
// @Param category query int false "分类ID"
// @Param tag query int false "标签ID"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /search/ [get]
func (h *PostHandler) Search(c *gin.Context) {
	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	result, err := h.service.Search(c.Request.Context(), q.Q, q.Category, q.Tag, q.Pagination)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// About 站点统计
// @Summary 站点统计
// @Tags Post
// @Produce json
// @Success 200 {object} response.Response{data=model.SiteStats}
// @Router /about/ [get]
func (h *PostHandler) About(c *gin.Context) {
	stats, err := h.service.AboutStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, stats)
}

// Category 分类下的文章
// @Summary 分类文章
// @Tags Post
// @Produce json
// @Param slug path string true "分类 slug"
// @Success 200 {object} response.Response{data=service.CategoryPage}
// @Failure 404 {object} response.Response
// @Router /category/{slug}/ [get]
func (h *PostHandler) Category(c *gin.Context) {
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)
	result, err := h.service.ByCategory(c.Request.Context(), c.Param("slug"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// Tag 标签下的文章
// @Summary 标签文章
// @Tags Post
// @Produce json
// @Param slug path string true "标签 slug"
// @Success 200 {object} response.Response{data=service.CategoryPage}
// @Failure 404 {object} response.Response
// @Router /tag/{slug}/ [get]
func (h *PostHandler) Tag(c *gin.Context) {
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)
	result, err := h.service.ByTag(c.Request.Context(), c.Param("slug"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// Detail 文章详情，同一会话只计一次浏览
// @Summary 文章详情
// @Tags Post
// @Produce json
// @Param id path int true "文章ID"
// @Success 200 {object} response.Response{data=service.PostDetail}
// @Failure 404 {object} response.Response
// @Router /post/{id}/ [get]
func (h *PostHandler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	viewerID, _ := middleware.CurrentUserID(c)

	detail, err := h.service.Detail(c.Request.Context(), id, viewerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if detail.IsPublished() && h.views != nil {
		first, err := h.views.FirstView(c, id)
		if err != nil {
			logger.L().Warn("view tracking failed", zap.Uint("post_id", id), zap.Error(err))
		} else if first {
			if err := h.service.RecordView(c.Request.Context(), id); err != nil {
				logger.L().Warn("view increment failed", zap.Uint("post_id", id), zap.Error(err))
			} else {
				detail.ViewsCount++
			}
		}
	}
	response.Success(c, detail)
}

// Create 新建文章，action=save_draft 保存为草稿
// @Summary 新建文章
// @Tags Post
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param title formData string true "标题"
// @Param content formData string true "正文"
// @Param featured_image formData file false "封面"
// @Param action formData string false "save_draft"
// @Success 201 {object} response.Response{data=model.Post}
// @Router /post/new/ [post]
func (h *PostHandler) Create(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	username := c.GetString(middleware.ContextUsername)

	in, ok := h.bindPost(c)
	if !ok {
		return
	}
	post, err := h.service.Create(c.Request.Context(), userID, username, in)
	if err != nil {
		if in.FeaturedImageKey != "" {
			_ = h.storage.Delete(c.Request.Context(), in.FeaturedImageKey)
		}
		h.fail(c, err)
		return
	}
	response.Created(c, post)
}

// Update 作者更新文章
// @Summary 更新文章
// @Tags Post
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param id path int true "文章ID"
// @Param action formData string false "save_draft|publish"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 403 {object} response.Response
// @Router /post/{id}/update/ [post]
func (h *PostHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)

	in, ok := h.bindPost(c)
	if !ok {
		return
	}
	post, err := h.service.Update(c.Request.Context(), userID, id, in)
	if err != nil {
		if in.FeaturedImageKey != "" {
			_ = h.storage.Delete(c.Request.Context(), in.FeaturedImageKey)
		}
		h.fail(c, err)
		return
	}
	response.Success(c, post)
}

// Delete 作者删除文章
// @Summary 删除文章
// @Tags Post
// @Produce json
// @Security Bearer
// @Param id path int true "文章ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /post/{id}/delete/ [post]
func (h *PostHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// Dashboard 本人所有状态的文章
// @Summary 我的文章
// @Tags Post
// @Produce json
// @Security Bearer
// @Param status query string false "draft|published|scheduled"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /dashboard/posts/ [get]
func (h *PostHandler) Dashboard(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)

	result, err := h.service.Dashboard(c.Request.Context(), userID, c.Query("status"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// AddComment 发表评论或回复
// @Summary 发表评论
// @Tags Comment
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "文章ID"
// @Param input body CommentForm true "评论"
// @Success 201 {object} response.Response{data=model.Comment}
// @Failure 403 {object} map[string]string
// @Router /post/{id}/comment/ [post]
func (h *PostHandler) AddComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)

	var form CommentForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	comment, err := h.comments.Add(c.Request.Context(), userID, id, form.ParentID, form.Content)
	if err != nil {
		if errors.Is(err, service.ErrCommentsDisabled) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Comments are disabled for this post"})
			return
		}
		h.fail(c, err)
		return
	}
	response.Created(c, comment)
}

// DeleteComment 评论作者或文章作者删除评论
// @Summary 删除评论
// @Tags Comment
// @Produce json
// @Security Bearer
// @Param id path int true "评论ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /comment/{id}/delete/ [post]
func (h *PostHandler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)

	postID, err := h.comments.Delete(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"postId": postID})
}

// bindPost 校验表单并保存上传的封面
func (h *PostHandler) bindPost(c *gin.Context) (service.PostInput, bool) {
	var form PostForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return service.PostInput{}, false
	}
	in := form.input()

	if file, err := c.FormFile("featured_image"); err == nil {
		key, err := uploader.SaveUpload(c.Request.Context(), h.storage, uploader.PostImageDir, file, h.maxUploadMB)
		if err != nil {
			if errors.Is(err, uploader.ErrFileTooLarge) || errors.Is(err, uploader.ErrUnsupportedImage) {
				response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
				return service.PostInput{}, false
			}
			logger.L().Error("featured image upload failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Upload failed")
			return service.PostInput{}, false
		}
		in.FeaturedImageKey = key
	}
	return in, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (h *PostHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPostNotFound, err.Error())
	case errors.Is(err, service.ErrCategoryNotFound):
		response.Error(c, http.StatusNotFound, response.ErrCategoryNotFound, err.Error())
	case errors.Is(err, service.ErrTagNotFound):
		response.Error(c, http.StatusNotFound, response.ErrTagNotFound, err.Error())
	case errors.Is(err, service.ErrCommentNotFound):
		response.Error(c, http.StatusNotFound, response.ErrCommentNotFound, err.Error())
	case errors.Is(err, service.ErrNoPermission), errors.Is(err, service.ErrCommentForbidden):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, err.Error())
	case errors.Is(err, service.ErrInvalidParent):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	default:
		logger.L().Error("post request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
