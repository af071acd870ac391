package repository

import (
	"context"
	"errors"

	"github.com/bubasket/marketplace-backend/internal/model"
	"gorm.io/gorm"
)

// ListingRepository is the read-only view of the listings collaborator the
// messaging core is allowed to take. Listing CRUD lives elsewhere.
type ListingRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.Listing, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Listing, error)
	SetDB(db *gorm.DB)
}

type listingRepository struct {
	db *gorm.DB
}

var ErrDBNotReady = errors.New("database not initialized")

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *listingRepository) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var listing model.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindByIDs batches the inbox's listing lookups into a single query.
func (r *listingRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var listings []model.Listing
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&listings).Error; err != nil {
		return nil, err
	}
	for _, l := range listings {
		out[l.ID] = l
	}
	return out, nil
}
