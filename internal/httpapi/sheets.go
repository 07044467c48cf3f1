package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
	"emargement/internal/export"
	"emargement/internal/sheet"
)

type entryRequest struct {
	StudentID uint               `json:"eleveId" binding:"required"`
	Status    *attendance.Status `json:"statut"`
	ArrivedAt *FlexTime          `json:"heureArrivee"`
}

type sheetRequest struct {
	Date      *FlexTime       `json:"date"`
	Trainer   *string         `json:"formateur" binding:"omitempty,max=150"`
	StartTime *FlexTime       `json:"heureDebut"`
	Presences *[]entryRequest `json:"presences" binding:"omitempty,dive"`
}

func (s *server) entries(in []entryRequest, day time.Time) []sheet.EntryInput {
	out := make([]sheet.EntryInput, 0, len(in))
	for _, e := range in {
		out = append(out, sheet.EntryInput{
			StudentID: e.StudentID,
			Status:    e.Status,
			ArrivedAt: e.ArrivedAt.Ptr(day, s.loc),
		})
	}
	return out
}

func (s *server) listSheets(c *gin.Context) {
	f := sheet.Filter{Query: c.Query("q")}
	date, err := s.queryDate(c)
	if err != nil {
		fail(c, err)
		return
	}
	f.Date = date
	sheets, err := s.sheets.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sheets)
}

func (s *server) createSheet(c *gin.Context) {
	var req sheetRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	if req.StartTime == nil || req.StartTime.IsZero() {
		fail(c, apperr.Invalid("heureDebut is required"))
		return
	}

	in := sheet.CreateInput{}
	day := s.today()
	if req.Date != nil && !req.Date.IsZero() {
		d := req.Date.On(day, s.loc)
		in.Date = &d
		day = d
	}
	if req.Trainer != nil {
		in.Trainer = *req.Trainer
	}
	in.StartTime = req.StartTime.On(day, s.loc)
	if req.Presences != nil {
		in.Presences = s.entries(*req.Presences, in.StartTime.In(s.loc))
	}

	sh, err := s.sheets.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

func (s *server) getSheet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	sh, err := s.sheets.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (s *server) updateSheet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var req sheetRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	ctx := c.Request.Context()
	cur, err := s.sheets.Get(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}

	// Bare times are placed on the sheet's own day.
	stored := time.Time(cur.Date)
	day := time.Date(stored.Year(), stored.Month(), stored.Day(), 0, 0, 0, 0, s.loc)
	p := sheet.Patch{Trainer: req.Trainer}
	if req.Date != nil && !req.Date.IsZero() {
		d := req.Date.On(day, s.loc)
		p.Date = &d
		day = d
	}
	start := cur.StartTime
	if req.StartTime != nil && !req.StartTime.IsZero() {
		start = req.StartTime.On(day, s.loc)
		p.StartTime = &start
	}
	if req.Presences != nil {
		entries := s.entries(*req.Presences, start.In(s.loc))
		p.Presences = &entries
	}

	sh, err := s.sheets.Update(ctx, id, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (s *server) deleteSheet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.sheets.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) exportSheet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	sh, err := s.sheets.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteSheet(&buf, sh, s.loc); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(sh)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *server) listPresences(c *gin.Context) {
	f := sheet.PresenceFilter{Query: c.Query("q")}
	date, err := s.queryDate(c)
	if err != nil {
		fail(c, err)
		return
	}
	f.Date = date
	if raw := c.Query("eleveId"); raw != "" {
		id, err := parseID("eleveId", raw)
		if err != nil {
			fail(c, err)
			return
		}
		f.StudentID = id
	}
	if raw := c.Query("statut"); raw != "" {
		st, err := attendance.ParseStatus(raw)
		if err != nil {
			fail(c, err)
			return
		}
		f.Status = st
	}
	rows, err := s.sheets.ListPresences(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// queryDate reads the optional ?date= filter.
func (s *server) queryDate(c *gin.Context) (*time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return nil, nil
	}
	ft, err := ParseFlexTime(raw)
	if err != nil {
		return nil, err
	}
	d := ft.On(s.today(), s.loc)
	return &d, nil
}
