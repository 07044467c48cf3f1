package roster

import (
	"context"
	"strings"

	"emargement/internal/apperr"
	"emargement/internal/events"
	"emargement/internal/model"
)

// Patch carries optional fields; nil means keep the stored value.
type Patch struct {
	LastName  *string
	FirstName *string
}

// Service validates roster changes and announces them.
type Service struct {
	repo   *Repository
	events events.Publisher
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard
	}
	return &Service{repo: repo, events: pub}
}

func (s *Service) Create(ctx context.Context, lastName, firstName string) (model.Student, error) {
	st := model.Student{
		LastName:  strings.TrimSpace(lastName),
		FirstName: strings.TrimSpace(firstName),
	}
	if err := validate(st); err != nil {
		return model.Student{}, err
	}
	if err := s.repo.Create(ctx, &st); err != nil {
		return model.Student{}, err
	}
	s.events.Publish(ctx, events.New(events.StudentCreated, st.ID))
	return st, nil
}

func (s *Service) List(ctx context.Context, query string) ([]model.Student, error) {
	return s.repo.List(ctx, query)
}

func (s *Service) Get(ctx context.Context, id uint) (model.Student, error) {
	return s.repo.Get(ctx, id)
}

// Update merges p into the stored student. Blank names are rejected
// rather than treated as "not provided".
func (s *Service) Update(ctx context.Context, id uint, p Patch) (model.Student, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Student{}, err
	}

	next := st
	if p.LastName != nil {
		next.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.FirstName != nil {
		next.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if err := validate(next); err != nil {
		return model.Student{}, err
	}
	if next.LastName == st.LastName && next.FirstName == st.FirstName {
		return st, nil
	}

	if err := s.repo.Save(ctx, &next); err != nil {
		return model.Student{}, err
	}
	s.events.Publish(ctx, events.New(events.StudentUpdated, next.ID))
	return next, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, events.New(events.StudentDeleted, id))
	return nil
}

func validate(st model.Student) error {
	if st.LastName == "" {
		return apperr.Invalid("nom is required")
	}
	if st.FirstName == "" {
		return apperr.Invalid("prenom is required")
	}
	return nil
}
