package repository

import "brighttalk-server/internal/model"

type PostStore interface {
	Create(post *model.Post) error
	Save(post *model.Post) error
	FindByID(id uint) (*model.Post, error)
	ListPosts(categoryID *uint, keyword string, offset int, limit int) ([]model.Post, int64, error)
	ListByUserID(userID uint, offset int, limit int) ([]model.Post, int64, error)
	DeleteByID(userID uint, postID uint) error
	CreateAttachment(attachment *model.Attachment) error
	ListAttachmentsByPostID(postID uint) ([]model.Attachment, error)
	FindAttachmentByID(attachmentID uint) (*model.Attachment, error)
	FindAttachmentByStorageKey(storageKey string) (*model.Attachment, error)
	DeleteAttachmentByID(postID uint, attachmentID uint) error
	CountAll() (int64, error)
}

type CommentStore interface {
	Create(comment *model.Comment) error
	ListByPostID(postID uint, offset int, limit int) ([]model.Comment, int64, error)
	DeleteByID(userID uint, commentID uint) error
}

type CategoryStore interface {
	Create(category *model.Category) error
	List() ([]model.Category, error)
	FindByID(id uint) (*model.Category, error)
	DeleteByID(id uint) error
}

type LikeStore interface {
	Create(like *model.Like) error
	Delete(postID uint, userID uint) error
	Exists(postID uint, userID uint) (bool, error)
	CountByPostID(postID uint) (int64, error)
}
