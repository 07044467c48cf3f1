package model

import (
	"time"

	"gorm.io/datatypes"

	"emargement/internal/attendance"
)

// Student is one roster entry. JSON names follow the web client.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LastName  string    `gorm:"size:100;not null" json:"nom"`
	FirstName string    `gorm:"size:100;not null" json:"prenom"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Student) TableName() string { return "students" }

// AttendanceSheet is one session: a trainer, a start time and the
// presence of every listed student.
type AttendanceSheet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Date      datatypes.Date  `gorm:"column:session_date;not null;index" json:"date"`
	Trainer   string          `gorm:"size:150;not null" json:"formateur"`
	StartTime time.Time       `gorm:"not null" json:"heureDebut"`
	Presences []PresenceEntry `gorm:"foreignKey:SheetID;constraint:OnDelete:CASCADE" json:"presences"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (AttendanceSheet) TableName() string { return "attendance_sheets" }

// PresenceEntry records one student's status on a sheet. ArrivedAt is
// nil exactly when Status is absent.
type PresenceEntry struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	SheetID   uint              `gorm:"not null;index" json:"listeId"`
	StudentID uint              `gorm:"not null;index" json:"eleveId"`
	Student   *Student          `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"eleve,omitempty"`
	Status    attendance.Status `gorm:"size:16;not null" json:"statut"`
	ArrivedAt *time.Time        `json:"heureArrivee"`
}

func (PresenceEntry) TableName() string { return "presence_entries" }

// SignInRecord is a row of the older single-table sign-in sheet.
type SignInRecord struct {
	ID          uint              `gorm:"column:id_liste;primaryKey" json:"id"`
	Date        datatypes.Date    `gorm:"column:date_du_jour;not null" json:"date_du_jour"`
	Trainer     string            `gorm:"column:formateur;size:150;not null" json:"formateur"`
	FullName    string            `gorm:"column:nom_prenom;size:200;not null" json:"nom_prenom"`
	ArrivalTime *attendance.Clock `gorm:"column:heure_arriveer" json:"heure_arriveer"`
	Signature   string            `gorm:"column:signature;type:text" json:"signature"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (SignInRecord) TableName() string { return "liste" }

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{&Student{}, &AttendanceSheet{}, &PresenceEntry{}, &SignInRecord{}}
}

// DateOf truncates t to its calendar day in loc and stores it as UTC midnight.
func DateOf(t time.Time, loc *time.Location) datatypes.Date {
	if loc == nil {
		loc = time.UTC
	}
	d := t.In(loc)
	return datatypes.Date(time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC))
}
