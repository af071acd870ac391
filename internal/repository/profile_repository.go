package repository

import (
	"context"
	"errors"

	"github.com/bubasket/marketplace-backend/internal/model"
	"gorm.io/gorm"
)

// ProfileRepository exposes display names only. The select list is the
// visibility rule: nothing beyond public columns ever leaves this layer.
type ProfileRepository interface {
	DisplayName(ctx context.Context, uid, requestingUID string) (string, error)
	DisplayNames(ctx context.Context, uids []string, requestingUID string) (map[string]string, error)
	SetDB(db *gorm.DB)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *profileRepository) DisplayName(ctx context.Context, uid, requestingUID string) (string, error) {
	if r.db == nil {
		return "", ErrDBNotReady
	}
	var p model.Profile
	if err := r.db.WithContext(ctx).
		Select("uid", "display_name").
		Where("uid = ?", uid).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return p.DisplayName, nil
}

func (r *profileRepository) DisplayNames(ctx context.Context, uids []string, requestingUID string) (map[string]string, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[string]string, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var profiles []model.Profile
	if err := r.db.WithContext(ctx).
		Select("uid", "display_name").
		Where("uid IN ?", uids).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.UID] = p.DisplayName
	}
	return out, nil
}
