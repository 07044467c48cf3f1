package signin

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"emargement/internal/apperr"
	"emargement/internal/model"
)

// Repository persists rows of the legacy sign-in sheet.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, rec *model.SignInRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// List returns every row, most recent day first.
func (r *Repository) List(ctx context.Context) ([]model.SignInRecord, error) {
	recs := []model.SignInRecord{}
	err := r.db.WithContext(ctx).Order("date_du_jour DESC, id_liste DESC").Find(&recs).Error
	return recs, err
}

func (r *Repository) Get(ctx context.Context, id uint) (model.SignInRecord, error) {
	var rec model.SignInRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SignInRecord{}, apperr.NotFound("sign-in record")
	}
	return rec, err
}

func (r *Repository) Save(ctx context.Context, rec *model.SignInRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.SignInRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("sign-in record")
	}
	return nil
}
