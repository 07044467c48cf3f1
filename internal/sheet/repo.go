package sheet

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
	"emargement/internal/model"
)

// Repository persists sheets together with their presence entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// query is the read filter; zero fields are ignored.
type query struct {
	text string
	date *datatypes.Date
}

type presenceQuery struct {
	text      string
	date      *datatypes.Date
	studentID uint
	status    attendance.Status
}

func withEntries(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Presences", func(db *gorm.DB) *gorm.DB { return db.Order("presence_entries.id ASC") }).
		Preload("Presences.Student")
}

// Create inserts the sheet and all its entries in one transaction.
func (r *Repository) Create(ctx context.Context, sh *model.AttendanceSheet) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkStudents(tx, sh.Presences); err != nil {
			return err
		}
		return tx.Create(sh).Error
	})
}

// Get returns one sheet with its entries and their students.
func (r *Repository) Get(ctx context.Context, id uint) (model.AttendanceSheet, error) {
	var sh model.AttendanceSheet
	err := withEntries(r.db.WithContext(ctx)).First(&sh, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AttendanceSheet{}, apperr.NotFound("attendance sheet")
	}
	if err != nil {
		return model.AttendanceSheet{}, err
	}
	normalize(&sh)
	return sh, nil
}

// List returns sheets, newest session first.
func (r *Repository) List(ctx context.Context, q query) ([]model.AttendanceSheet, error) {
	tx := withEntries(r.db.WithContext(ctx).Model(&model.AttendanceSheet{}))
	if q.date != nil {
		tx = tx.Where("session_date = ?", *q.date)
	}
	if text := strings.ToLower(strings.TrimSpace(q.text)); text != "" {
		like := "%" + text + "%"
		matching := r.db.Model(&model.PresenceEntry{}).
			Select("presence_entries.sheet_id").
			Joins("JOIN students ON students.id = presence_entries.student_id").
			Where("LOWER(students.last_name) LIKE ? OR LOWER(students.first_name) LIKE ?", like, like)
		tx = tx.Where("LOWER(attendance_sheets.trainer) LIKE ? OR attendance_sheets.id IN (?)", like, matching)
	}

	sheets := []model.AttendanceSheet{}
	if err := tx.Order("session_date DESC, start_time DESC, id DESC").Find(&sheets).Error; err != nil {
		return nil, err
	}
	for i := range sheets {
		normalize(&sheets[i])
	}
	return sheets, nil
}

// Update writes the sheet columns. With replace set, the stored entries
// are swapped for sh.Presences; otherwise each entry's status and arrival
// are rewritten in place.
func (r *Repository) Update(ctx context.Context, sh *model.AttendanceSheet, replace bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(sh).Error; err != nil {
			return err
		}
		if replace {
			if err := checkStudents(tx, sh.Presences); err != nil {
				return err
			}
			if err := tx.Where("sheet_id = ?", sh.ID).Delete(&model.PresenceEntry{}).Error; err != nil {
				return err
			}
			if len(sh.Presences) == 0 {
				return nil
			}
			for i := range sh.Presences {
				sh.Presences[i].ID = 0
				sh.Presences[i].SheetID = sh.ID
				sh.Presences[i].Student = nil
			}
			return tx.Create(&sh.Presences).Error
		}
		for _, e := range sh.Presences {
			err := tx.Model(&model.PresenceEntry{}).
				Where("id = ?", e.ID).
				Select("status", "arrived_at").
				Updates(map[string]any{"status": e.Status, "arrived_at": e.ArrivedAt}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the sheet and its entries.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sheet_id = ?", id).Delete(&model.PresenceEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.AttendanceSheet{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("attendance sheet")
		}
		return nil
	})
}

// Presences returns entries across sheets plus the sheets they belong
// to, keyed by id. Sheets come back without their entries.
func (r *Repository) Presences(ctx context.Context, q presenceQuery) ([]model.PresenceEntry, map[uint]model.AttendanceSheet, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.PresenceEntry{}).
		Joins("JOIN attendance_sheets ON attendance_sheets.id = presence_entries.sheet_id").
		Preload("Student")
	if q.date != nil {
		tx = tx.Where("attendance_sheets.session_date = ?", *q.date)
	}
	if q.studentID != 0 {
		tx = tx.Where("presence_entries.student_id = ?", q.studentID)
	}
	if q.status != "" {
		tx = tx.Where("presence_entries.status = ?", q.status)
	}
	if text := strings.ToLower(strings.TrimSpace(q.text)); text != "" {
		like := "%" + text + "%"
		tx = tx.Joins("JOIN students ON students.id = presence_entries.student_id").
			Where("LOWER(students.last_name) LIKE ? OR LOWER(students.first_name) LIKE ?", like, like)
	}

	entries := []model.PresenceEntry{}
	err := tx.Order("attendance_sheets.session_date DESC, attendance_sheets.id DESC, presence_entries.id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, nil, err
	}

	sheets := map[uint]model.AttendanceSheet{}
	if len(entries) == 0 {
		return entries, sheets, nil
	}
	ids := make([]uint, 0, len(entries))
	seen := map[uint]bool{}
	for _, e := range entries {
		if !seen[e.SheetID] {
			seen[e.SheetID] = true
			ids = append(ids, e.SheetID)
		}
	}
	var found []model.AttendanceSheet
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, nil, err
	}
	for _, sh := range found {
		sheets[sh.ID] = sh
	}
	return entries, sheets, nil
}

// checkStudents rejects entries pointing at unknown students.
func checkStudents(tx *gorm.DB, entries []model.PresenceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	wanted := make([]uint, 0, len(entries))
	for _, e := range entries {
		wanted = append(wanted, e.StudentID)
	}
	var found []uint
	if err := tx.Model(&model.Student{}).Where("id IN ?", wanted).Pluck("id", &found).Error; err != nil {
		return err
	}
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []uint
	for _, id := range wanted {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return apperr.Invalid("unknown student id(s) %v", missing)
	}
	return nil
}

// normalize makes an empty entry list encode as [] instead of null.
func normalize(sh *model.AttendanceSheet) {
	if sh.Presences == nil {
		sh.Presences = []model.PresenceEntry{}
	}
}
