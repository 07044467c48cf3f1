package sheet

import (
	"context"
	"strings"
	"time"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
	"emargement/internal/events"
	"emargement/internal/model"
)

// EntryInput is one student's line on a sheet as submitted by a client.
// Status may be omitted when ArrivedAt is set.
type EntryInput struct {
	StudentID uint
	Status    *attendance.Status
	ArrivedAt *time.Time
}

// CreateInput describes a new sheet. Date defaults to the day of StartTime.
type CreateInput struct {
	Date      *time.Time
	Trainer   string
	StartTime time.Time
	Presences []EntryInput
}

// Patch carries optional fields; nil means keep. A non-nil Presences
// replaces every entry on the sheet.
type Patch struct {
	Date      *time.Time
	Trainer   *string
	StartTime *time.Time
	Presences *[]EntryInput
}

// Filter narrows List. Query matches the trainer or any listed student.
type Filter struct {
	Query string
	Date  *time.Time
}

// PresenceFilter narrows ListPresences.
type PresenceFilter struct {
	Query     string
	Date      *time.Time
	StudentID uint
	Status    attendance.Status
}

// PresenceRow is an entry flattened with the session it belongs to.
type PresenceRow struct {
	model.PresenceEntry
	Date      time.Time `json:"date"`
	Trainer   string    `json:"formateur"`
	StartTime time.Time `json:"heureDebut"`
}

// Service owns the consistency rules of attendance sheets.
type Service struct {
	repo       *Repository
	classifier attendance.Classifier
	events     events.Publisher
}

// NewService wires a service; a nil publisher drops events.
func NewService(repo *Repository, classifier attendance.Classifier, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard
	}
	return &Service{repo: repo, classifier: classifier, events: pub}
}

// Classifier exposes the rule set used to resolve entries.
func (s *Service) Classifier() attendance.Classifier { return s.classifier }

func (s *Service) Create(ctx context.Context, in CreateInput) (model.AttendanceSheet, error) {
	if in.StartTime.IsZero() {
		return model.AttendanceSheet{}, apperr.Invalid("heureDebut is required")
	}
	sh := model.AttendanceSheet{
		Trainer:   strings.TrimSpace(in.Trainer),
		StartTime: in.StartTime.UTC(),
	}
	if sh.Trainer == "" {
		return model.AttendanceSheet{}, apperr.Invalid("formateur is required")
	}
	day := in.StartTime
	if in.Date != nil && !in.Date.IsZero() {
		day = *in.Date
	}
	sh.Date = model.DateOf(day, s.classifier.Location)

	entries, err := s.resolve(sh.StartTime, in.Presences)
	if err != nil {
		return model.AttendanceSheet{}, err
	}
	sh.Presences = entries

	if err := s.repo.Create(ctx, &sh); err != nil {
		return model.AttendanceSheet{}, err
	}
	s.events.Publish(ctx, events.New(events.SheetCreated, sh.ID))
	return s.repo.Get(ctx, sh.ID)
}

func (s *Service) List(ctx context.Context, f Filter) ([]model.AttendanceSheet, error) {
	q := query{text: f.Query}
	if f.Date != nil {
		d := model.DateOf(*f.Date, s.classifier.Location)
		q.date = &d
	}
	return s.repo.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id uint) (model.AttendanceSheet, error) {
	return s.repo.Get(ctx, id)
}

// Update merges p into the stored sheet. When only the start time moves,
// existing arrivals are classified again against it.
func (s *Service) Update(ctx context.Context, id uint, p Patch) (model.AttendanceSheet, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.AttendanceSheet{}, err
	}

	next := cur
	next.Presences = append([]model.PresenceEntry(nil), cur.Presences...)
	if p.Trainer != nil {
		next.Trainer = strings.TrimSpace(*p.Trainer)
		if next.Trainer == "" {
			return model.AttendanceSheet{}, apperr.Invalid("formateur is required")
		}
	}
	if p.StartTime != nil {
		if p.StartTime.IsZero() {
			return model.AttendanceSheet{}, apperr.Invalid("heureDebut is required")
		}
		next.StartTime = p.StartTime.UTC()
	}
	if p.Date != nil && !p.Date.IsZero() {
		next.Date = model.DateOf(*p.Date, s.classifier.Location)
	}
	startMoved := !next.StartTime.Equal(cur.StartTime)

	replace := false
	if p.Presences != nil {
		entries, err := s.resolve(next.StartTime, *p.Presences)
		if err != nil {
			return model.AttendanceSheet{}, err
		}
		replace = !sameEntries(cur.Presences, entries)
		if replace {
			next.Presences = entries
		}
	}
	if !replace && startMoved {
		for i, e := range next.Presences {
			if e.Status == attendance.Absent || e.ArrivedAt == nil {
				continue
			}
			st, at, err := s.classifier.Resolve(next.StartTime, nil, e.ArrivedAt)
			if err != nil {
				return model.AttendanceSheet{}, err
			}
			next.Presences[i].Status = st
			next.Presences[i].ArrivedAt = at
		}
	}

	changed := replace || startMoved ||
		next.Trainer != cur.Trainer ||
		!time.Time(next.Date).Equal(time.Time(cur.Date))
	if !changed {
		return cur, nil
	}

	if err := s.repo.Update(ctx, &next, replace); err != nil {
		return model.AttendanceSheet{}, err
	}
	s.events.Publish(ctx, events.New(events.SheetUpdated, next.ID))
	return s.repo.Get(ctx, next.ID)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, events.New(events.SheetDeleted, id))
	return nil
}

// ListPresences flattens entries across sheets, newest session first.
func (s *Service) ListPresences(ctx context.Context, f PresenceFilter) ([]PresenceRow, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Invalid("unknown status %q", f.Status)
	}
	q := presenceQuery{text: f.Query, studentID: f.StudentID, status: f.Status}
	if f.Date != nil {
		d := model.DateOf(*f.Date, s.classifier.Location)
		q.date = &d
	}
	entries, sheets, err := s.repo.Presences(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := make([]PresenceRow, 0, len(entries))
	for _, e := range entries {
		sh := sheets[e.SheetID]
		rows = append(rows, PresenceRow{
			PresenceEntry: e,
			Date:          time.Time(sh.Date),
			Trainer:       sh.Trainer,
			StartTime:     sh.StartTime,
		})
	}
	return rows, nil
}

// resolve turns client input into storable entries. A student may appear
// at most once per sheet.
func (s *Service) resolve(start time.Time, in []EntryInput) ([]model.PresenceEntry, error) {
	out := make([]model.PresenceEntry, 0, len(in))
	seen := make(map[uint]bool, len(in))
	for _, e := range in {
		if e.StudentID == 0 {
			return nil, apperr.Invalid("eleveId is required")
		}
		if seen[e.StudentID] {
			return nil, apperr.Invalid("student %d is listed twice", e.StudentID)
		}
		seen[e.StudentID] = true

		st, at, err := s.classifier.Resolve(start, e.Status, e.ArrivedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PresenceEntry{StudentID: e.StudentID, Status: st, ArrivedAt: at})
	}
	return out, nil
}

func sameEntries(a, b []model.PresenceEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].StudentID != b[i].StudentID || a[i].Status != b[i].Status {
			return false
		}
		switch {
		case a[i].ArrivedAt == nil && b[i].ArrivedAt == nil:
		case a[i].ArrivedAt == nil || b[i].ArrivedAt == nil:
			return false
		case !a[i].ArrivedAt.Equal(*b[i].ArrivedAt):
			return false
		}
	}
	return true
}
