package repo

import (
	"context"

	"Tianguis/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingRepository: доступ к объявлениям.
type ListingRepository interface {
	// List возвращает объявления (включая удалённые); ownerKey сужает выборку.
	List(ctx context.Context, ownerKey string) ([]model.Listing, error)
	GetByKey(ctx context.Context, key string) (*model.Listing, error)
	// SaveIfNewer вставляет объявление или перезаписывает его, если хранимая копия
	// принадлежит тому же владельцу и не новее входящей.
	SaveIfNewer(ctx context.Context, l *model.Listing) (bool, error)
}

type listingRepo struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepo{db: db}
}

func (r *listingRepo) List(ctx context.Context, ownerKey string) ([]model.Listing, error) {
	q := r.db.WithContext(ctx).Order("modified_at DESC").Order("id")
	if ownerKey != "" {
		q = q.Where("owner_key = ?", ownerKey)
	}
	var out []model.Listing
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *listingRepo) GetByKey(ctx context.Context, key string) (*model.Listing, error) {
	var l model.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", key).Take(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepo) SaveIfNewer(ctx context.Context, l *model.Listing) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "description", "location", "price", "image", "modified_at", "deleted",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "listings.modified_at <= excluded.modified_at AND listings.owner_key = excluded.owner_key"},
		}},
	}).Create(l)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
