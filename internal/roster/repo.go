package roster

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"emargement/internal/apperr"
	"emargement/internal/model"
)

// Repository persists students.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts st and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, st *model.Student) error {
	return r.db.WithContext(ctx).Create(st).Error
}

// List returns students ordered by surname then first name. A non-empty
// query matches either name, case-insensitively.
func (r *Repository) List(ctx context.Context, query string) ([]model.Student, error) {
	tx := r.db.WithContext(ctx).Model(&model.Student{})
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ?", like, like)
	}
	students := []model.Student{}
	err := tx.Order("last_name ASC, first_name ASC, id ASC").Find(&students).Error
	return students, err
}

// Get returns one student.
func (r *Repository) Get(ctx context.Context, id uint) (model.Student, error) {
	var st model.Student
	err := r.db.WithContext(ctx).First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Student{}, apperr.NotFound("student")
	}
	return st, err
}

// Save writes every column of st.
func (r *Repository) Save(ctx context.Context, st *model.Student) error {
	return r.db.WithContext(ctx).Save(st).Error
}

// Delete removes a student together with their presence entries.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&model.PresenceEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Student{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("student")
		}
		return nil
	})
}
