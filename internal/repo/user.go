package repo

import (
	"context"
	"errors"

	"Tianguis/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository: доступ к учётным записям.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByLogin(ctx context.Context, username string) (*model.User, error)
	GetUserByKey(ctx context.Context, key string) (*model.User, error)
	// SaveIfNewer перезаписывает запись, если её modified_at не новее входящей.
	SaveIfNewer(ctx context.Context, user *model.User) (bool, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByLogin возвращает gorm.ErrRecordNotFound, если такого имени нет.
func (r *userRepo) GetUserByLogin(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetUserByKey(ctx context.Context, key string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", key).Take(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) SaveIfNewer(ctx context.Context, user *model.User) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "credential_hash", "modified_at", "deleted"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "users.modified_at <= excluded.modified_at"},
		}},
	}).Create(user)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// IsNotFound сообщает, что записи нет.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
