package upload

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const pruneBatchSize = 100

type Repository interface {
	Create(ctx context.Context, u *Upload) error
	GetByID(ctx context.Context, id string) (*Upload, error)
	GetByPath(ctx context.Context, path string) (*Upload, error)
	Delete(ctx context.Context, id string) error
	ListByUserID(ctx context.Context, userID int64) ([]*Upload, error)
	ListByUserAndField(ctx context.Context, userID int64, field string) ([]*Upload, error)
	Each(ctx context.Context, fn func(u *Upload) error) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *Upload) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Upload, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetByPath(ctx context.Context, path string) (*Upload, error) {
	return r.first(ctx, "file_path = ?", path)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*Upload, error) {
	var u Upload
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Upload{}).Error
}

func (r *repository) ListByUserID(ctx context.Context, userID int64) ([]*Upload, error) {
	var uploads []*Upload
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&uploads).Error
	return uploads, err
}

func (r *repository) ListByUserAndField(ctx context.Context, userID int64, field string) ([]*Upload, error) {
	var uploads []*Upload
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND field = ?", userID, field).
		Order("created_at DESC").
		Find(&uploads).Error
	return uploads, err
}

// Each walks every upload in primary key order, a batch at a time.
func (r *repository) Each(ctx context.Context, fn func(u *Upload) error) error {
	var batch []*Upload
	return r.db.WithContext(ctx).FindInBatches(&batch, pruneBatchSize, func(_ *gorm.DB, _ int) error {
		for _, u := range batch {
			if err := fn(u); err != nil {
				return err
			}
		}
		return nil
	}).Error
}
