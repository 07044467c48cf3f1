// Package export renders a sheet as a spreadsheet-friendly CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"emargement/internal/model"
	"emargement/internal/stats"
)

// Separator is ';' so French spreadsheet locales open the file directly.
const Separator = ';'

// Filename suggests a download name for sh.
func Filename(sh model.AttendanceSheet) string {
	return fmt.Sprintf("liste-presence-%s-%d.csv", time.Time(sh.Date).Format("2006-01-02"), sh.ID)
}

// WriteSheet writes a header block describing the session, a blank line,
// then one row per entry in sheet order. Times are shown in loc.
func WriteSheet(w io.Writer, sh model.AttendanceSheet, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	var sum stats.Summary
	for _, e := range sh.Presences {
		sum.Add(e.Status, 1)
	}

	cw := csv.NewWriter(w)
	cw.Comma = Separator
	records := [][]string{
		{"Date", time.Time(sh.Date).Format("02/01/2006")},
		{"Formateur", cell(sh.Trainer)},
		{"Heure de début", sh.StartTime.In(loc).Format("15:04")},
		{"Présents", strconv.Itoa(sum.Present)},
		{"En retard", strconv.Itoa(sum.Late)},
		{"Absents", strconv.Itoa(sum.Absent)},
		{},
		{"Nom", "Prénom", "Heure d'arrivée", "Statut"},
	}
	for _, e := range sh.Presences {
		var last, first string
		if e.Student != nil {
			last, first = e.Student.LastName, e.Student.FirstName
		}
		arrived := ""
		if e.ArrivedAt != nil {
			arrived = e.ArrivedAt.In(loc).Format("15:04")
		}
		records = append(records, []string{cell(last), cell(first), arrived, e.Status.Label()})
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("export sheet %d: %w", sh.ID, err)
	}
	return nil
}

// cell quotes free text that a spreadsheet would otherwise evaluate as a
// formula.
func cell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
