package repository

import (
	"gorm.io/gorm"
)

type Repositories struct {
	User     UserStore
	Passkey  PasskeyStore
	Post     PostStore
	Comment  CommentStore
	Category CategoryStore
	Like     LikeStore
	Setting  SettingStore
}

func NewUserRepository(db *gorm.DB) UserStore {
	return &UserRepository{db: db}
}

func NewPasskeyRepository(db *gorm.DB) PasskeyStore {
	return &PasskeyRepository{db: db}
}

func NewPostRepository(db *gorm.DB) PostStore {
	return &PostRepository{db: db}
}

func NewCommentRepository(db *gorm.DB) CommentStore {
	return &CommentRepository{db: db}
}

func NewCategoryRepository(db *gorm.DB) CategoryStore {
	return &CategoryRepository{db: db}
}

func NewLikeRepository(db *gorm.DB) LikeStore {
	return &LikeRepository{db: db}
}

func NewSettingRepository(db *gorm.DB) SettingStore {
	return &SettingRepository{db: db}
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Passkey:  NewPasskeyRepository(db),
		Post:     NewPostRepository(db),
		Comment:  NewCommentRepository(db),
		Category: NewCategoryRepository(db),
		Like:     NewLikeRepository(db),
		Setting:  NewSettingRepository(db),
	}
}
