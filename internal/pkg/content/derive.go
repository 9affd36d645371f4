package content

import (
	"strings"
)

const (
	ExcerptLength         = 250
	MetaDescriptionLength = 160
	WordsPerMinute        = 200
	ellipsis              = "..."
)

// Fields 派生流水线的输入输出
type Fields struct {
	Content         string
	Excerpt         string
	MetaDescription string
	ReadingTime     int
}

// Derive 依次补全摘要、阅读时长、meta 描述
// 纯函数，空内容时阅读时长为 1
func Derive(f Fields) Fields {
	if f.Excerpt == "" {
		f.Excerpt = Excerpt(f.Content)
	}
	f.ReadingTime = ReadingTime(f.Content)
	if f.MetaDescription == "" {
		f.MetaDescription = MetaDescription(f.Excerpt, f.Content)
	}
	return f
}

// Excerpt 取前 250 个字符，截断时追加 "..."
func Excerpt(content string) string {
	r := []rune(content)
	if len(r) <= ExcerptLength {
		return content
	}
	return string(r[:ExcerptLength]) + ellipsis
}

// ReadingTime max(1, ceil(words/200))
func ReadingTime(content string) int {
	words := len(strings.Fields(content))
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// MetaDescription 优先取摘要的前 160 个字符
func MetaDescription(excerpt, content string) string {
	src := excerpt
	if src == "" {
		src = content
	}
	return truncateRunes(src, MetaDescriptionLength)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
