package service

import (
	"context"
	"errors"
	"fmt"

	"blog_engine/internal/domain/post/model"
	"blog_engine/internal/domain/post/repository"

	"gorm.io/gorm"
)

var (
	ErrCommentNotFound  = errors.New("comment not found")
	ErrCommentsDisabled = errors.New("comments are disabled for this post")
	ErrInvalidParent    = errors.New("parent comment does not belong to this post")
	ErrCommentForbidden = errors.New("you do not have permission to delete this comment")
)

// CommentService 评论
type CommentService interface {
	Add(ctx context.Context, userID, postID uint, parentID *uint, text string) (*model.Comment, error)
	Delete(ctx context.Context, userID, commentID uint) (postID uint, err error)
}

type commentService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func NewCommentService(posts repository.PostRepository, comments repository.CommentRepository) CommentService {
	return &commentService{posts: posts, comments: comments}
}

// Add 只能评论已发布且允许评论的文章
// 回复二级评论时挂到同一个一级评论下
func (s *commentService) Add(ctx context.Context, userID, postID uint, parentID *uint, text string) (*model.Comment, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if !post.IsPublished() {
		return nil, ErrPostNotFound
	}
	if !post.AllowComments {
		return nil, ErrCommentsDisabled
	}

	comment := &model.Comment{
		PostID:     postID,
		AuthorID:   userID,
		Content:    text,
		IsApproved: true,
		Level:      1,
	}

	if parentID != nil && *parentID != 0 {
		parent, err := s.comments.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCommentNotFound
			}
			return nil, err
		}
		if parent.PostID != postID {
			return nil, ErrInvalidParent
		}

		comment.ParentID = &parent.ID
		comment.Level = 2
		if parent.Level == 1 {
			comment.RootID = &parent.ID
		} else {
			comment.RootID = parent.RootID
		}
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// Delete 评论作者或文章作者可删除
func (s *commentService) Delete(ctx context.Context, userID, commentID uint) (uint, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCommentNotFound
		}
		return 0, err
	}

	if comment.AuthorID != userID {
		post, err := s.posts.GetByID(ctx, comment.PostID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		if post == nil || post.AuthorID != userID {
			return 0, ErrCommentForbidden
		}
	}

	if err := s.comments.Delete(ctx, comment); err != nil {
		return 0, fmt.Errorf("delete comment: %w", err)
	}
	return comment.PostID, nil
}

// buildTree 一级评论最新在前，回复按时间正序挂在一级评论下
// 输入须按创建时间正序
func buildTree(comments []model.Comment) []model.Comment {
	replies := make(map[uint][]model.Comment)
	roots := make([]model.Comment, 0)
	for _, c := range comments {
		if c.Level == 1 || c.RootID == nil {
			roots = append(roots, c)
			continue
		}
		replies[*c.RootID] = append(replies[*c.RootID], c)
	}

	tree := make([]model.Comment, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		root := roots[i]
		root.Replies = replies[root.ID]
		tree = append(tree, root)
	}
	return tree
}
