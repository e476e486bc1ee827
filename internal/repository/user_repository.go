package repository

import (
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"
)

type UserStore interface {
	FindByID(id uint) (*model.User, error)
	FindByUsername(username string) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	Create(user *model.User) error
	Save(user *model.User) error
	UpdateUsernameByID(userID uint, username string) error
	UpdatePasswordByID(userID uint, hashedPassword string) error
	UpdateAvatar(user *model.User, filename string) error
	UpdateByID(userID uint, updates map[string]interface{}) error
	FieldExists(field consts.UserField, value string, excludeUserID *uint) (bool, error)
	CountAll() (int64, error)
}
