// Package stats computes attendance tallies and caches them between
// changes.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"gorm.io/gorm"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
	"emargement/internal/events"
	"emargement/internal/model"
)

// Summary counts entries per status. Rates are percentages with one
// decimal; all zero when there is nothing to count.
type Summary struct {
	Total       int     `json:"total"`
	Present     int     `json:"present"`
	Late        int     `json:"late"`
	Absent      int     `json:"absent"`
	PresentRate float64 `json:"present_rate"`
	LateRate    float64 `json:"late_rate"`
	AbsentRate  float64 `json:"absent_rate"`
}

// Add counts n entries with status st and refreshes the rates.
func (s *Summary) Add(st attendance.Status, n int) {
	switch st {
	case attendance.Present:
		s.Present += n
	case attendance.Late:
		s.Late += n
	case attendance.Absent:
		s.Absent += n
	default:
		return
	}
	s.Total += n
	s.PresentRate = rate(s.Present, s.Total)
	s.LateRate = rate(s.Late, s.Total)
	s.AbsentRate = rate(s.Absent, s.Total)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// StudentSummary is one roster line of the per-student report.
type StudentSummary struct {
	StudentID uint   `json:"eleveId"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Summary
}

// Service reads tallies straight from the entry table.
type Service struct {
	db    *gorm.DB
	cache Cache
}

// NewService wires the service; a nil cache disables caching.
func NewService(db *gorm.DB, cache Cache) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{db: db, cache: cache}
}

type tally struct {
	StudentID uint
	Status    attendance.Status
	N         int
}

// Global summarises every entry of every sheet.
func (s *Service) Global(ctx context.Context) (Summary, error) {
	var out Summary
	err := s.cached(ctx, "global", &out, func() error {
		var err error
		out, err = s.count(ctx, s.db.WithContext(ctx).Model(&model.PresenceEntry{}))
		return err
	})
	return out, err
}

// Sheet summarises one sheet.
func (s *Service) Sheet(ctx context.Context, id uint) (Summary, error) {
	var out Summary
	err := s.cached(ctx, fmt.Sprintf("sheet:%d", id), &out, func() error {
		if err := s.exists(ctx, &model.AttendanceSheet{}, id, "attendance sheet"); err != nil {
			return err
		}
		var err error
		out, err = s.count(ctx, s.db.WithContext(ctx).Model(&model.PresenceEntry{}).Where("sheet_id = ?", id))
		return err
	})
	return out, err
}

// Student summarises one student across all sheets.
func (s *Service) Student(ctx context.Context, id uint) (Summary, error) {
	var out Summary
	err := s.cached(ctx, fmt.Sprintf("student:%d", id), &out, func() error {
		if err := s.exists(ctx, &model.Student{}, id, "student"); err != nil {
			return err
		}
		var err error
		out, err = s.count(ctx, s.db.WithContext(ctx).Model(&model.PresenceEntry{}).Where("student_id = ?", id))
		return err
	})
	return out, err
}

// Students reports every student in roster order, including those never
// listed on a sheet.
func (s *Service) Students(ctx context.Context) ([]StudentSummary, error) {
	out := []StudentSummary{}
	err := s.cached(ctx, "students", &out, func() error {
		var students []model.Student
		if err := s.db.WithContext(ctx).Order("last_name ASC, first_name ASC, id ASC").Find(&students).Error; err != nil {
			return err
		}
		var rows []tally
		err := s.db.WithContext(ctx).Model(&model.PresenceEntry{}).
			Select("student_id, status, COUNT(*) AS n").
			Group("student_id, status").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		byStudent := make(map[uint]*Summary, len(students))
		out = make([]StudentSummary, len(students))
		for i, st := range students {
			out[i] = StudentSummary{StudentID: st.ID, LastName: st.LastName, FirstName: st.FirstName}
			byStudent[st.ID] = &out[i].Summary
		}
		for _, r := range rows {
			if sum, ok := byStudent[r.StudentID]; ok {
				sum.Add(r.Status, r.N)
			}
		}
		return nil
	})
	return out, err
}

// Invalidate drops every cached result.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// Warm precomputes the reports dashboards ask for first.
func (s *Service) Warm(ctx context.Context) (Summary, error) {
	global, err := s.Global(ctx)
	if err != nil {
		return Summary{}, err
	}
	if _, err := s.Students(ctx); err != nil {
		return Summary{}, err
	}
	return global, nil
}

// Invalidator is an event sink that drops the cache on every change.
func (s *Service) Invalidator() events.Sink {
	return events.SinkFunc(func(ctx context.Context, _ events.Event) error {
		return s.Invalidate(ctx)
	})
}

func (s *Service) count(ctx context.Context, tx *gorm.DB) (Summary, error) {
	var rows []tally
	if err := tx.Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, r := range rows {
		sum.Add(r.Status, r.N)
	}
	return sum, nil
}

func (s *Service) exists(ctx context.Context, m any, id uint, name string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(name)
	}
	return nil
}

// cached serves key from the cache or runs compute and stores dst. Cache
// errors never fail the request.
func (s *Service) cached(ctx context.Context, key string, dst any, compute func() error) error {
	hit, slot, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Printf("stats cache get %s: %v", key, err)
	}
	if hit {
		return nil
	}
	if err := compute(); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, slot, dst); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("stats cache set %s: %v", key, err)
	}
	return nil
}
