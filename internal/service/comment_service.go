package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"

	"gorm.io/gorm"
)

// CommentPage 是评论列表的分页返回。
type CommentPage struct {
	Comments []model.Comment `json:"comments"`
	Total    int64           `json:"total"`
}

// CreateComment 在帖子下发表评论。
func (s *AppService) CreateComment(userID uint, postID uint, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.NewValidationError("评论内容不能为空")
	}
	if utf8.RuneCountInString(content) > consts.CommentMaxRunes {
		return nil, common.NewValidationError("评论过长")
	}

	if _, err := s.GetPost(postID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: content,
	}
	if err := s.repos.Comment.Create(comment); err != nil {
		return nil, common.NewInternalError("评论失败，请稍后重试")
	}
	return comment, nil
}

// ListComments 查询帖子评论。
func (s *AppService) ListComments(postID uint, page int, pageSize int) (*CommentPage, error) {
	offset, limit := normalizePage(page, pageSize)
	comments, total, err := s.repos.Comment.ListByPostID(postID, offset, limit)
	if err != nil {
		return nil, common.NewInternalError("查询评论失败")
	}
	return &CommentPage{Comments: comments, Total: total}, nil
}

// DeleteComment 删除自己的评论。
func (s *AppService) DeleteComment(userID uint, commentID uint) error {
	if err := s.repos.Comment.DeleteByID(userID, commentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("评论不存在")
		}
		return common.NewInternalError("删除评论失败")
	}
	return nil
}

// LikePost 点赞帖子，重复点赞直接返回当前状态。
func (s *AppService) LikePost(userID uint, postID uint) (int64, error) {
	if _, err := s.GetPost(postID); err != nil {
		return 0, err
	}

	exists, err := s.repos.Like.Exists(postID, userID)
	if err != nil {
		return 0, common.NewInternalError("点赞失败，请稍后重试")
	}
	if !exists {
		if err := s.repos.Like.Create(&model.Like{PostID: postID, UserID: userID}); err != nil {
			// 并发下唯一索引冲突视为已点赞
			if !isUniqueConflict(err) {
				return 0, common.NewInternalError("点赞失败，请稍后重试")
			}
		}
	}
	return s.countLikes(postID)
}

// UnlikePost 取消点赞，幂等。
func (s *AppService) UnlikePost(userID uint, postID uint) (int64, error) {
	if _, err := s.GetPost(postID); err != nil {
		return 0, err
	}
	if err := s.repos.Like.Delete(postID, userID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, common.NewInternalError("取消点赞失败，请稍后重试")
	}
	return s.countLikes(postID)
}

func (s *AppService) countLikes(postID uint) (int64, error) {
	count, err := s.repos.Like.CountByPostID(postID)
	if err != nil {
		return 0, common.NewInternalError("查询点赞数失败")
	}
	return count, nil
}

// CreateCategory 新建分类，仅管理员调用。
func (s *AppService) CreateCategory(name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("分类名不能为空")
	}
	if utf8.RuneCountInString(name) > consts.CategoryNameMaxRunes {
		return nil, common.NewValidationError("分类名过长")
	}

	category := &model.Category{Name: name}
	if err := s.repos.Category.Create(category); err != nil {
		if isUniqueConflict(err) {
			return nil, common.NewConflictError("分类已存在")
		}
		return nil, common.NewInternalError("创建分类失败")
	}
	return category, nil
}

// ListCategories 列出全部分类。
func (s *AppService) ListCategories() ([]model.Category, error) {
	categories, err := s.repos.Category.List()
	if err != nil {
		return nil, common.NewInternalError("查询分类失败")
	}
	return categories, nil
}

// DeleteCategory 删除分类，仅管理员调用。
func (s *AppService) DeleteCategory(categoryID uint) error {
	if err := s.repos.Category.DeleteByID(categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("分类不存在")
		}
		return common.NewInternalError("删除分类失败")
	}
	return nil
}
