package repository

import (
	"strings"

	"blog_engine/internal/domain/post/model"

	"gorm.io/gorm"
)

// likeEscaper 搜索词按字面匹配，% 和 _ 不作通配符
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// 排序键
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortPopular  = "popular"
	SortTrending = "trending"
)

const (
	likesCountSQL    = "(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id)"
	commentsCountSQL = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_approved = ?)"
	lastLikedSQL     = "(SELECT MAX(likes.created_at) FROM likes WHERE likes.post_id = posts.id)"
)

// PostQuery 文章列表查询构造器
// 只累积条件，由 PostRepository.List 一次性执行
type PostQuery struct {
	statuses     []string
	authorID     uint
	search       string
	searchAuthor bool
	categorySlug string
	categoryID   uint
	tagSlug      string
	tagID        uint
	sort         string
}

func NewPostQuery() *PostQuery {
	return &PostQuery{sort: SortNewest}
}

// Published 仅已发布
func (q *PostQuery) Published() *PostQuery {
	q.statuses = []string{model.StatusPublished}
	return q
}

// Status 限定状态，忽略非法值
func (q *PostQuery) Status(statuses ...string) *PostQuery {
	q.statuses = q.statuses[:0]
	for _, s := range statuses {
		if model.ValidStatus(s) {
			q.statuses = append(q.statuses, s)
		}
	}
	return q
}

func (q *PostQuery) Author(id uint) *PostQuery {
	q.authorID = id
	return q
}

// Search 标题、正文、摘要不区分大小写子串匹配
func (q *PostQuery) Search(text string) *PostQuery {
	q.search = strings.TrimSpace(text)
	return q
}

// IncludeAuthorName 搜索时同时匹配作者用户名
func (q *PostQuery) IncludeAuthorName() *PostQuery {
	q.searchAuthor = true
	return q
}

func (q *PostQuery) CategorySlug(slug string) *PostQuery {
	q.categorySlug = slug
	return q
}

func (q *PostQuery) CategoryID(id uint) *PostQuery {
	q.categoryID = id
	return q
}

func (q *PostQuery) TagSlug(slug string) *PostQuery {
	q.tagSlug = slug
	return q
}

func (q *PostQuery) TagID(id uint) *PostQuery {
	q.tagID = id
	return q
}

// Sort 未知排序键回退为 newest
func (q *PostQuery) Sort(key string) *PostQuery {
	switch key {
	case SortOldest, SortPopular, SortTrending:
		q.sort = key
	default:
		q.sort = SortNewest
	}
	return q
}

// SortKey 实际生效的排序键
func (q *PostQuery) SortKey() string {
	return q.sort
}

// filter 只用子查询过滤，多值的标签关联不会产生重复行
func (q *PostQuery) filter(db *gorm.DB) *gorm.DB {
	if len(q.statuses) > 0 {
		db = db.Where("posts.status IN ?", q.statuses)
	}
	if q.authorID != 0 {
		db = db.Where("posts.author_id = ?", q.authorID)
	}
	if q.search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q.search)) + "%"
		cond := `LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\' OR LOWER(posts.excerpt) LIKE ? ESCAPE '\'`
		args := []interface{}{like, like, like}
		if q.searchAuthor {
			cond += ` OR posts.author_id IN (SELECT users.id FROM users WHERE LOWER(users.username) LIKE ? ESCAPE '\')`
			args = append(args, like)
		}
		db = db.Where("("+cond+")", args...)
	}
	if q.categoryID != 0 {
		db = db.Where("posts.category_id = ?", q.categoryID)
	}
	if q.categorySlug != "" {
		db = db.Where("posts.category_id IN (SELECT categories.id FROM categories WHERE categories.slug = ?)", q.categorySlug)
	}
	if q.tagID != 0 {
		db = db.Where("posts.id IN (SELECT post_tags.post_id FROM post_tags WHERE post_tags.tag_id = ?)", q.tagID)
	}
	if q.tagSlug != "" {
		db = db.Where(
			"posts.id IN (SELECT post_tags.post_id FROM post_tags JOIN tags ON tags.id = post_tags.tag_id WHERE tags.slug = ?)",
			q.tagSlug,
		)
	}
	return db
}

func (q *PostQuery) order(db *gorm.DB) *gorm.DB {
	switch q.sort {
	case SortOldest:
		return db.Order("posts.created_at ASC").Order("posts.id ASC")
	case SortPopular:
		return db.Order("posts.views_count DESC").Order("posts.created_at DESC")
	case SortTrending:
		// 最近被点赞的在前，没有点赞的排最后
		return db.
			Order("CASE WHEN " + lastLikedSQL + " IS NULL THEN 1 ELSE 0 END").
			Order(lastLikedSQL + " DESC").
			Order("posts.created_at DESC")
	default:
		return db.Order("posts.created_at DESC").Order("posts.id DESC")
	}
}

// withCounts 附带点赞数和已审核评论数
func withCounts(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, "+likesCountSQL+" AS likes_count, "+commentsCountSQL+" AS comments_count", true)
}
