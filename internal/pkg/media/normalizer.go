package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/metrics"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat 无法解码或无法原格式编码的图片
var ErrUnsupportedFormat = errors.New("unsupported image format")

var encodeFormats = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
}

// Normalizer 把存储中的图片规整为不透明、不超过限定尺寸的版本，能原格式编码的原地覆盖
// MaxHeight 为 0 表示只限制宽度
type Normalizer struct {
	Storage   uploader.Storage
	MaxWidth  int
	MaxHeight int
	Quality   int
	Metrics   *metrics.MetricsCollector
}

// ForPosts 文章配图：宽度不超过 1200
func ForPosts(s uploader.Storage, cfg config.MediaConfig, m *metrics.MetricsCollector) *Normalizer {
	return &Normalizer{Storage: s, MaxWidth: cfg.PostMaxWidth, Quality: cfg.JPEGQuality, Metrics: m}
}

// ForAvatars 头像：不超过 300x300
func ForAvatars(s uploader.Storage, cfg config.MediaConfig, m *metrics.MetricsCollector) *Normalizer {
	return &Normalizer{Storage: s, MaxWidth: cfg.AvatarMaxSize, MaxHeight: cfg.AvatarMaxSize, Quality: cfg.JPEGQuality, Metrics: m}
}

// Normalize 返回规整后的 key 以及是否改写了对象
// webp 只能解码，需要改写时转存为同名 .jpg 并删除原对象
func (n *Normalizer) Normalize(ctx context.Context, key string) (string, bool, error) {
	rc, err := n.Storage.Open(ctx, key)
	if err != nil {
		return key, false, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return key, false, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return key, false, fmt.Errorf("decode %s: %w", key, err)
	}
	target := key
	encFormat, ok := encodeFormats[format]
	if format == "webp" {
		encFormat, ok = imaging.JPEG, true
		target = strings.TrimSuffix(key, filepath.Ext(key)) + ".jpg"
	}
	if !ok {
		return key, false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	out, changed := n.transform(img)
	if !changed {
		return key, false, nil
	}

	buf := &bytes.Buffer{}
	quality := n.Quality
	if quality <= 0 {
		quality = 85
	}
	if err := imaging.Encode(buf, out, encFormat, imaging.JPEGQuality(quality)); err != nil {
		return key, false, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := n.Storage.Put(ctx, target, buf); err != nil {
		return key, false, fmt.Errorf("overwrite %s: %w", target, err)
	}
	if target != key {
		if err := n.Storage.Delete(ctx, key); err != nil {
			logger.L().Warn("failed to remove converted image", zap.String("key", key), zap.Error(err))
		}
	}
	return target, true, nil
}

// transform 先去透明再缩放
func (n *Normalizer) transform(img image.Image) (image.Image, bool) {
	changed := false
	if hasAlpha(img) {
		img = flatten(img)
		changed = true
	}

	b := img.Bounds()
	tooWide := n.MaxWidth > 0 && b.Dx() > n.MaxWidth
	tooTall := n.MaxHeight > 0 && b.Dy() > n.MaxHeight
	if tooWide || tooTall {
		if n.MaxHeight > 0 && n.MaxWidth > 0 {
			img = imaging.Fit(img, n.MaxWidth, n.MaxHeight, imaging.Lanczos)
		} else if n.MaxWidth > 0 {
			img = imaging.Resize(img, n.MaxWidth, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, n.MaxHeight, imaging.Lanczos)
		}
		changed = true
	}
	return img, changed
}

// hasAlpha 是否存在非不透明像素
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// flatten 合成到白色背景
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// NormalizeBestEffort 失败只记录日志并返回原 key，不影响触发它的保存
func (n *Normalizer) NormalizeBestEffort(ctx context.Context, key string) string {
	if n == nil || key == "" {
		return key
	}

	stored, changed, err := n.Normalize(ctx, key)
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		logger.L().Info("image normalisation skipped", zap.String("key", key), zap.Error(err))
		n.record("skipped")
	case err != nil:
		logger.L().Warn("image normalisation failed", zap.String("key", key), zap.Error(err))
		n.record("error")
	case changed:
		n.record("normalized")
	default:
		n.record("unchanged")
	}
	return stored
}

func (n *Normalizer) record(result string) {
	if n.Metrics != nil {
		n.Metrics.RecordImageNormalize(result)
	}
}
