package repository

import (
	"strings"

	"brighttalk-server/internal/model"

	"gorm.io/gorm"
)

type PostRepository struct {
	db *gorm.DB
}

func (r *PostRepository) Create(post *model.Post) error {
	return r.db.Create(post).Error
}

func (r *PostRepository) Save(post *model.Post) error {
	return r.db.Save(post).Error
}

// FindByID 返回帖子及其附件，渲染时需要附件文件名与存储键。
func (r *PostRepository) FindByID(id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.Preload("Attachments").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) ListPosts(categoryID *uint, keyword string, offset int, limit int) ([]model.Post, int64, error) {
	var posts []model.Post
	var total int64

	query := r.db.Model(&model.Post{})
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}
	kw := strings.TrimSpace(keyword)
	if kw != "" {
		query = query.Where("title LIKE ?", "%"+kw+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Attachments").Order("id desc").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) ListByUserID(userID uint, offset int, limit int) ([]model.Post, int64, error) {
	var posts []model.Post
	var total int64

	query := r.db.Model(&model.Post{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Attachments").Order("id desc").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) DeleteByID(userID uint, postID uint) error {
	tx := r.db.Where("user_id = ? AND id = ?", userID, postID).Delete(&model.Post{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PostRepository) CreateAttachment(attachment *model.Attachment) error {
	return r.db.Create(attachment).Error
}

func (r *PostRepository) ListAttachmentsByPostID(postID uint) ([]model.Attachment, error) {
	var attachments []model.Attachment
	if err := r.db.Where("post_id = ?", postID).Order("id asc").Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *PostRepository) FindAttachmentByID(attachmentID uint) (*model.Attachment, error) {
	var attachment model.Attachment
	if err := r.db.First(&attachment, attachmentID).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *PostRepository) FindAttachmentByStorageKey(storageKey string) (*model.Attachment, error) {
	var attachment model.Attachment
	if err := r.db.Where("storage_key = ?", storageKey).First(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *PostRepository) DeleteAttachmentByID(postID uint, attachmentID uint) error {
	tx := r.db.Where("post_id = ? AND id = ?", postID, attachmentID).Delete(&model.Attachment{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PostRepository) CountAll() (int64, error) {
	var count int64
	if err := r.db.Model(&model.Post{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type CommentRepository struct {
	db *gorm.DB
}

func (r *CommentRepository) Create(comment *model.Comment) error {
	return r.db.Create(comment).Error
}

func (r *CommentRepository) ListByPostID(postID uint, offset int, limit int) ([]model.Comment, int64, error) {
	var comments []model.Comment
	var total int64

	query := r.db.Model(&model.Comment{}).Where("post_id = ?", postID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id asc").Offset(offset).Limit(limit).Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *CommentRepository) DeleteByID(userID uint, commentID uint) error {
	tx := r.db.Where("user_id = ? AND id = ?", userID, commentID).Delete(&model.Comment{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type CategoryRepository struct {
	db *gorm.DB
}

func (r *CategoryRepository) Create(category *model.Category) error {
	return r.db.Create(category).Error
}

func (r *CategoryRepository) List() ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.Order("name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) FindByID(id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) DeleteByID(id uint) error {
	tx := r.db.Delete(&model.Category{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type LikeRepository struct {
	db *gorm.DB
}

func (r *LikeRepository) Create(like *model.Like) error {
	return r.db.Create(like).Error
}

func (r *LikeRepository) Delete(postID uint, userID uint) error {
	tx := r.db.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Like{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *LikeRepository) Exists(postID uint, userID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Like{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *LikeRepository) CountByPostID(postID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
