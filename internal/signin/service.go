package signin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
	"emargement/internal/cloudinary"
	"emargement/internal/events"
	"emargement/internal/model"
)

// Input is a new sign-in row. Date defaults to today.
type Input struct {
	Date        *time.Time
	Trainer     string
	FullName    string
	ArrivalTime *attendance.Clock
	Signature   string
}

// Patch carries optional fields; nil means keep. Signature may be set to
// "" to clear it, the names may not. ClearArrival removes the arrival
// time and wins over ArrivalTime.
type Patch struct {
	Date         *time.Time
	Trainer      *string
	FullName     *string
	ArrivalTime  *attendance.Clock
	ClearArrival bool
	Signature    *string
}

// Service handles the legacy single-table sign-in sheet.
type Service struct {
	repo     *Repository
	uploader cloudinary.Uploader
	events   events.Publisher
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the store. A nil uploader keeps signatures inline.
func NewService(repo *Repository, up cloudinary.Uploader, pub events.Publisher, loc *time.Location) *Service {
	if pub == nil {
		pub = events.Discard
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, uploader: up, events: pub, loc: loc, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in Input) (model.SignInRecord, error) {
	rec := model.SignInRecord{
		Trainer:     strings.TrimSpace(in.Trainer),
		FullName:    strings.TrimSpace(in.FullName),
		ArrivalTime: in.ArrivalTime,
	}
	day := s.now()
	if in.Date != nil && !in.Date.IsZero() {
		day = *in.Date
	}
	rec.Date = model.DateOf(day, s.loc)
	if err := validate(rec); err != nil {
		return model.SignInRecord{}, err
	}

	sig, err := s.storeSignature(ctx, in.Signature)
	if err != nil {
		return model.SignInRecord{}, err
	}
	rec.Signature = sig

	if err := s.repo.Create(ctx, &rec); err != nil {
		return model.SignInRecord{}, err
	}
	s.events.Publish(ctx, events.New(events.SignInCreated, rec.ID))
	return rec, nil
}

func (s *Service) List(ctx context.Context) ([]model.SignInRecord, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uint) (model.SignInRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uint, p Patch) (model.SignInRecord, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.SignInRecord{}, err
	}

	next := cur
	if p.Date != nil && !p.Date.IsZero() {
		next.Date = model.DateOf(*p.Date, s.loc)
	}
	if p.Trainer != nil {
		next.Trainer = strings.TrimSpace(*p.Trainer)
	}
	if p.FullName != nil {
		next.FullName = strings.TrimSpace(*p.FullName)
	}
	switch {
	case p.ClearArrival:
		next.ArrivalTime = nil
	case p.ArrivalTime != nil:
		c := *p.ArrivalTime
		next.ArrivalTime = &c
	}
	if err := validate(next); err != nil {
		return model.SignInRecord{}, err
	}
	if p.Signature != nil && *p.Signature != cur.Signature {
		sig, err := s.storeSignature(ctx, *p.Signature)
		if err != nil {
			return model.SignInRecord{}, err
		}
		next.Signature = sig
	}
	if sameRecord(cur, next) {
		return cur, nil
	}

	if err := s.repo.Save(ctx, &next); err != nil {
		return model.SignInRecord{}, err
	}
	s.events.Publish(ctx, events.New(events.SignInUpdated, next.ID))
	return next, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, events.New(events.SignInDeleted, id))
	return nil
}

// storeSignature uploads inline images when an uploader is configured.
func (s *Service) storeSignature(ctx context.Context, sig string) (string, error) {
	sig = strings.TrimSpace(sig)
	if s.uploader == nil || !cloudinary.IsDataURL(sig) {
		return sig, nil
	}
	url, err := s.uploader.Upload(ctx, sig)
	if err != nil {
		return "", fmt.Errorf("upload signature: %w", err)
	}
	return url, nil
}

func validate(rec model.SignInRecord) error {
	if rec.Trainer == "" {
		return apperr.Invalid("formateur is required")
	}
	if rec.FullName == "" {
		return apperr.Invalid("nom_prenom is required")
	}
	return nil
}

func sameRecord(a, b model.SignInRecord) bool {
	if a.Trainer != b.Trainer || a.FullName != b.FullName || a.Signature != b.Signature {
		return false
	}
	if !time.Time(a.Date).Equal(time.Time(b.Date)) {
		return false
	}
	switch {
	case a.ArrivalTime == nil && b.ArrivalTime == nil:
		return true
	case a.ArrivalTime == nil || b.ArrivalTime == nil:
		return false
	}
	return *a.ArrivalTime == *b.ArrivalTime
}
