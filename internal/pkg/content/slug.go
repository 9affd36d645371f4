package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// 与 posts.slug / categories.slug 和 tags.slug 的列宽一致
const (
	MaxSlugLength    = 200
	MaxTagSlugLength = 50
	DefaultPostSlug  = "post"
)

// Slugify 去掉变音符号、小写、非字母数字折叠为单个连字符
// 结果只含 ASCII，按字节截断是安全的
func Slugify(s string) string {
	return truncate(slug.Make(s), MaxSlugLength)
}

// TagSlug 音译后可能远长于标签名，按标签列宽截断
func TagSlug(name string) string {
	return truncate(slug.Make(name), MaxTagSlugLength)
}

func truncate(s string, max int) string {
	if len(s) > max {
		s = strings.TrimRight(s[:max], "-")
	}
	return s
}

// PostSlug 空结果退回到 "post"
func PostSlug(title string) string {
	if s := Slugify(title); s != "" {
		return s
	}
	return DefaultPostSlug
}

// ExistsFunc 判断 slug 是否已被占用
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// UniqueSlug 依次尝试 base, base-1, base-2 ... 直到未被占用，结果不超过 maxLen 字节
// 加后缀时先截短 base，检查与插入之间不是原子的，调用方需要处理唯一约束冲突
func UniqueSlug(ctx context.Context, base string, maxLen int, exists ExistsFunc) (string, error) {
	candidate := truncate(base, maxLen)
	for i := 1; ; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := fmt.Sprintf("-%d", i)
		candidate = truncate(base, maxLen-len(suffix)) + suffix
	}
}
