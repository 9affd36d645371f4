package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"blog_engine/internal/pkg/config"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedImage = errors.New("unsupported image extension")
	ErrObjectNotFound   = errors.New("object not found")
)

// 目录前缀
const (
	PostImageDir  = "post_images"
	AvatarDir     = "profile_pics"
	defaultMaxMB  = 5
	dateDirLayout = "2006/01/02"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Storage 对象存储抽象，key 为相对路径
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewStorage 根据 media.driver 创建存储
func NewStorage(cfg config.Config) (Storage, error) {
	switch cfg.Media.Driver {
	case "oss":
		return NewAliyunOSSStorage(cfg.OSS)
	default:
		return NewLocalStorage(cfg.Media.Root, cfg.Media.BaseURL)
	}
}

// ValidateImage 校验图片大小与扩展名
func ValidateImage(file *multipart.FileHeader, maxMB int64) error {
	if maxMB <= 0 {
		maxMB = defaultMaxMB
	}
	if file.Size > maxMB*1024*1024 {
		return fmt.Errorf("%w: image file too large ( > %dMB )", ErrFileTooLarge, maxMB)
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}
	return nil
}

// NewKey 生成唯一对象名
// 文章图片: post_images/YYYY/MM/DD/uuid.ext，头像: profile_pics/uuid.ext
func NewKey(dir, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.New().String() + ext
	if dir == PostImageDir {
		return path.Join(dir, now.Format(dateDirLayout), name)
	}
	return path.Join(dir, name)
}

// SaveUpload 校验并保存上传的图片，返回对象 key
func SaveUpload(ctx context.Context, s Storage, dir string, file *multipart.FileHeader, maxMB int64) (string, error) {
	if err := ValidateImage(file, maxMB); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := NewKey(dir, file.Filename, time.Now())
	if err := s.Put(ctx, key, src); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return key, nil
}
