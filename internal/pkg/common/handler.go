package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/database"
	"blog_engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// MaxUploadFiles 单次批量上传的文件数上限
const MaxUploadFiles = 9

// UploadedImage 已保存的插图
type UploadedImage struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type CommonHandler struct {
	db          *gorm.DB
	rdb         *redis.Client
	storage     uploader.Storage
	normalizer  *media.Normalizer
	maxUploadMB int64
}

func NewCommonHandler(db *gorm.DB, rdb *redis.Client, storage uploader.Storage, normalizer *media.Normalizer, maxUploadMB int64) *CommonHandler {
	return &CommonHandler{db: db, rdb: rdb, storage: storage, normalizer: normalizer, maxUploadMB: maxUploadMB}
}

// Health 健康检查
// @Summary 健康检查
// @Tags Common
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *CommonHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{"database": "ok"}
	healthy := true

	if err := database.Ping(ctx, h.db); err != nil {
		status["database"] = err.Error()
		healthy = false
	}
	if h.rdb != nil {
		status["redis"] = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    response.ErrServerInternal,
			Message: "unhealthy",
			Data:    status,
		})
		return
	}
	response.Success(c, status)
}

// UploadImages 上传正文插图 (支持批量)
// @Summary 上传文章插图 (支持批量)
// @Tags Common
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param files formData file true "Files"
// @Success 200 {object} response.Response{data=[]UploadedImage}
// @Router /upload/ [post]
func (h *CommonHandler) UploadImages(c *gin.Context) {
	// 解析 multipart form
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid form data")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "No files uploaded")
		return
	}
	if len(files) > MaxUploadFiles {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Too many files")
		return
	}

	// 先整体校验，避免部分写入
	for _, f := range files {
		if err := uploader.ValidateImage(f, h.maxUploadMB); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	// 结果数组，预分配大小
	images := make([]UploadedImage, len(files))

	var wg sync.WaitGroup
	var errOnce sync.Once
	var uploadErr error

	// 限制并发数为 5，避免过多协程
	sem := make(chan struct{}, 5)
	ctx := c.Request.Context()

	for i, file := range files {
		wg.Add(1)
		go func(index int, f *multipart.FileHeader) {
			defer wg.Done()

			// 获取信号量
			sem <- struct{}{}
			defer func() { <-sem }()

			key, err := uploader.SaveUpload(ctx, h.storage, uploader.PostImageDir, f, h.maxUploadMB)
			if err != nil {
				errOnce.Do(func() {
					uploadErr = err
				})
				return
			}
			key = h.normalizer.NormalizeBestEffort(ctx, key)

			// 直接按索引赋值，保证顺序
			images[index] = UploadedImage{Key: key, URL: h.storage.URL(key)}
		}(i, file)
	}

	wg.Wait()

	if uploadErr != nil {
		if errors.Is(uploadErr, uploader.ErrFileTooLarge) || errors.Is(uploadErr, uploader.ErrUnsupportedImage) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, uploadErr.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Upload failed")
		return
	}

	response.Success(c, images)
}
