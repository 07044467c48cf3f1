package sheet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
	"emargement/internal/events"
	"emargement/internal/model"
	"emargement/internal/roster"
	"emargement/internal/store/storetest"
)

type recorder struct{ types []events.Type }

func (r *recorder) Publish(_ context.Context, evt events.Event) { r.types = append(r.types, evt.Type) }

type fixture struct {
	svc      *Service
	rec      *recorder
	students []model.Student
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := storetest.Open(t)
	people := roster.NewService(roster.NewRepository(db.Gorm), nil)
	var students []model.Student
	for _, n := range [][2]string{{"Dupont", "Marie"}, {"Bernard", "Paul"}, {"Petit", "Léa"}} {
		st, err := people.Create(context.Background(), n[0], n[1])
		require.NoError(t, err)
		students = append(students, st)
	}
	rec := &recorder{}
	svc := NewService(NewRepository(db.Gorm), attendance.NewClassifier(attendance.DefaultGracePeriod, time.UTC), rec)
	return fixture{svc: svc, rec: rec, students: students}
}

func at(hhmm string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2024-03-11 "+hhmm)
	if err != nil {
		panic(err)
	}
	return &t
}

func status(s attendance.Status) *attendance.Status { return &s }

func TestCreateClassifiesEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sh, err := f.svc.Create(ctx, CreateInput{
		Trainer:   " Mme Durand ",
		StartTime: *at("09:00"),
		Presences: []EntryInput{
			{StudentID: f.students[0].ID, ArrivedAt: at("08:55")},
			{StudentID: f.students[1].ID, ArrivedAt: at("09:10")},
			{StudentID: f.students[2].ID, ArrivedAt: at("09:11")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mme Durand", sh.Trainer)
	assert.Equal(t, "2024-03-11", time.Time(sh.Date).Format("2006-01-02"))
	require.Len(t, sh.Presences, 3)

	assert.Equal(t, attendance.Present, sh.Presences[0].Status)
	assert.Equal(t, attendance.Late, sh.Presences[1].Status)
	assert.Equal(t, attendance.Absent, sh.Presences[2].Status)
	assert.Nil(t, sh.Presences[2].ArrivedAt)
	require.NotNil(t, sh.Presences[0].Student)
	assert.Equal(t, "Dupont", sh.Presences[0].Student.LastName)
	assert.Equal(t, []events.Type{events.SheetCreated}, f.rec.types)
}

func TestCreateWithoutEntries(t *testing.T) {
	f := setup(t)
	sh, err := f.svc.Create(context.Background(), CreateInput{Trainer: "M. Roux", StartTime: *at("14:00")})
	require.NoError(t, err)
	assert.NotNil(t, sh.Presences)
	assert.Empty(t, sh.Presences)
}

func TestCreateRejectsInconsistentInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := *at("09:00")

	cases := map[string]CreateInput{
		"blank trainer":   {Trainer: " ", StartTime: start},
		"missing start":   {Trainer: "X"},
		"unknown student": {Trainer: "X", StartTime: start, Presences: []EntryInput{{StudentID: 999, ArrivedAt: at("09:00")}}},
		"duplicate": {Trainer: "X", StartTime: start, Presences: []EntryInput{
			{StudentID: f.students[0].ID, ArrivedAt: at("09:00")},
			{StudentID: f.students[0].ID, ArrivedAt: at("09:05")},
		}},
		"status disagrees": {Trainer: "X", StartTime: start, Presences: []EntryInput{
			{StudentID: f.students[0].ID, Status: status(attendance.Present), ArrivedAt: at("09:30")},
		}},
		"late without arrival": {Trainer: "X", StartTime: start, Presences: []EntryInput{
			{StudentID: f.students[0].ID, Status: status(attendance.Late)},
		}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, in)
			assert.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}

	all, err := f.svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all, "rejected sheets must not be stored")
}

func TestExplicitAbsentClearsArrival(t *testing.T) {
	f := setup(t)
	sh, err := f.svc.Create(context.Background(), CreateInput{
		Trainer:   "X",
		StartTime: *at("09:00"),
		Presences: []EntryInput{{StudentID: f.students[0].ID, Status: status(attendance.Absent), ArrivedAt: at("08:50")}},
	})
	require.NoError(t, err)
	require.Len(t, sh.Presences, 1)
	assert.Equal(t, attendance.Absent, sh.Presences[0].Status)
	assert.Nil(t, sh.Presences[0].ArrivedAt)
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	monday := *at("09:00")
	tuesday := monday.Add(24 * time.Hour)

	_, err := f.svc.Create(ctx, CreateInput{Trainer: "Mme Durand", StartTime: monday,
		Presences: []EntryInput{{StudentID: f.students[0].ID, ArrivedAt: at("09:00")}}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{Trainer: "M. Roux", StartTime: tuesday,
		Presences: []EntryInput{{StudentID: f.students[1].ID, Status: status(attendance.Absent)}}})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "M. Roux", all[0].Trainer, "newest first")

	byTrainer, err := f.svc.List(ctx, Filter{Query: "durand"})
	require.NoError(t, err)
	require.Len(t, byTrainer, 1)
	assert.Equal(t, "Mme Durand", byTrainer[0].Trainer)

	byStudent, err := f.svc.List(ctx, Filter{Query: "bernard"})
	require.NoError(t, err)
	require.Len(t, byStudent, 1)
	assert.Equal(t, "M. Roux", byStudent[0].Trainer)
	require.Len(t, byStudent[0].Presences, 1, "matching sheets keep all their entries")

	byDate, err := f.svc.List(ctx, Filter{Date: &monday})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "Mme Durand", byDate[0].Trainer)
}

func TestUpdateReplacesEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sh, err := f.svc.Create(ctx, CreateInput{Trainer: "X", StartTime: *at("09:00"),
		Presences: []EntryInput{{StudentID: f.students[0].ID, ArrivedAt: at("09:00")}}})
	require.NoError(t, err)

	entries := []EntryInput{
		{StudentID: f.students[1].ID, ArrivedAt: at("09:05")},
		{StudentID: f.students[2].ID, Status: status(attendance.Absent)},
	}
	trainer := "Y"
	updated, err := f.svc.Update(ctx, sh.ID, Patch{Trainer: &trainer, Presences: &entries})
	require.NoError(t, err)
	assert.Equal(t, "Y", updated.Trainer)
	require.Len(t, updated.Presences, 2)
	assert.Equal(t, f.students[1].ID, updated.Presences[0].StudentID)
	assert.Equal(t, attendance.Late, updated.Presences[0].Status)
	assert.Equal(t, attendance.Absent, updated.Presences[1].Status)

	empty := []EntryInput{}
	cleared, err := f.svc.Update(ctx, sh.ID, Patch{Presences: &empty})
	require.NoError(t, err)
	assert.Empty(t, cleared.Presences)
}

func TestUpdateStartReclassifies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sh, err := f.svc.Create(ctx, CreateInput{Trainer: "X", StartTime: *at("09:00"),
		Presences: []EntryInput{
			{StudentID: f.students[0].ID, ArrivedAt: at("09:05")},
			{StudentID: f.students[1].ID, Status: status(attendance.Absent)},
		}})
	require.NoError(t, err)
	assert.Equal(t, attendance.Late, sh.Presences[0].Status)

	updated, err := f.svc.Update(ctx, sh.ID, Patch{StartTime: at("09:10")})
	require.NoError(t, err)
	assert.Equal(t, attendance.Present, updated.Presences[0].Status)
	assert.NotNil(t, updated.Presences[0].ArrivedAt)
	assert.Equal(t, attendance.Absent, updated.Presences[1].Status)
}

func TestUpdateWithoutChangesIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sh, err := f.svc.Create(ctx, CreateInput{Trainer: "X", StartTime: *at("09:00"),
		Presences: []EntryInput{{StudentID: f.students[0].ID, ArrivedAt: at("09:00")}}})
	require.NoError(t, err)

	same := []EntryInput{{StudentID: f.students[0].ID, ArrivedAt: at("09:00")}}
	trainer := "X"
	got, err := f.svc.Update(ctx, sh.ID, Patch{Trainer: &trainer, Presences: &same})
	require.NoError(t, err)
	assert.Equal(t, sh.Presences[0].ID, got.Presences[0].ID)
	assert.Equal(t, []events.Type{events.SheetCreated}, f.rec.types)
}

func TestUpdateRejectsBlankTrainer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sh, err := f.svc.Create(ctx, CreateInput{Trainer: "X", StartTime: *at("09:00")})
	require.NoError(t, err)

	blank := ""
	_, err = f.svc.Update(ctx, sh.ID, Patch{Trainer: &blank})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestMissingSheet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Get(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	trainer := "X"
	_, err = f.svc.Update(ctx, 42, Patch{Trainer: &trainer})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, 42), apperr.ErrNotFound)
}

func TestDeleteRemovesEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sh, err := f.svc.Create(ctx, CreateInput{Trainer: "X", StartTime: *at("09:00"),
		Presences: []EntryInput{{StudentID: f.students[0].ID, ArrivedAt: at("09:00")}}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, sh.ID))
	rows, err := f.svc.ListPresences(ctx, PresenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListPresences(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, CreateInput{Trainer: "Mme Durand", StartTime: *at("09:00"),
		Presences: []EntryInput{
			{StudentID: f.students[0].ID, ArrivedAt: at("09:00")},
			{StudentID: f.students[1].ID, ArrivedAt: at("09:04")},
			{StudentID: f.students[2].ID, Status: status(attendance.Absent)},
		}})
	require.NoError(t, err)

	rows, err := f.svc.ListPresences(ctx, PresenceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Mme Durand", rows[0].Trainer)
	assert.Equal(t, "2024-03-11", rows[0].Date.Format("2006-01-02"))

	late, err := f.svc.ListPresences(ctx, PresenceFilter{Status: attendance.Late})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, f.students[1].ID, late[0].StudentID)

	byStudent, err := f.svc.ListPresences(ctx, PresenceFilter{StudentID: f.students[2].ID})
	require.NoError(t, err)
	require.Len(t, byStudent, 1)
	assert.Equal(t, attendance.Absent, byStudent[0].Status)

	byName, err := f.svc.ListPresences(ctx, PresenceFilter{Query: "petit"})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	other := at("09:00").Add(48 * time.Hour)
	none, err := f.svc.ListPresences(ctx, PresenceFilter{Date: &other})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.ListPresences(ctx, PresenceFilter{Status: "excused"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
