package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/pothole/pkg/errs"
)

// PotholeStatus is the triage stage of a report.
type PotholeStatus string

const (
	StatusPending   PotholeStatus = "pending"
	StatusInProcess PotholeStatus = "inprocess"
	StatusCompleted PotholeStatus = "completed"
)

// PotholeStatuses lists every allowed status in workflow order.
var PotholeStatuses = []PotholeStatus{StatusPending, StatusInProcess, StatusCompleted}

// Valid reports whether s is one of the allowed statuses. Any valid status may
// follow any other; membership is the only guard.
func (s PotholeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProcess, StatusCompleted:
		return true
	}
	return false
}

// ParsePotholeStatus matches raw exactly; "Pending" or " pending" are rejected.
func ParsePotholeStatus(raw string) (PotholeStatus, bool) {
	s := PotholeStatus(raw)
	return s, s.Valid()
}

// GPS is the fix taken when the pothole was detected.
type GPS struct {
	Longitude float64 `gorm:"column:longitude;not null" json:"longitude"`
	Latitude  float64 `gorm:"column:latitude;not null"  json:"latitude"`
}

// Reporter is the public view of the user who filed a report. It maps onto the
// users table but never loads credential columns.
type Reporter struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"              json:"id"`
	Name  string    `gorm:"size:100;not null"             json:"name"`
	Email string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
}

func (Reporter) TableName() string {
	return "users"
}

// PotholeReport is one detection submitted by a field vehicle.
type PotholeReport struct {
	ID                 uuid.UUID     `gorm:"type:uuid;primaryKey"                                   json:"id"`
	Distance           float64       `gorm:"column:distance;not null"                               json:"distance"`
	ImageRef           string        `gorm:"column:image;size:500;not null"                         json:"image"`
	GPS                GPS           `gorm:"embedded"                                               json:"gps"`
	VehicleName        string        `gorm:"column:vehicle_name;size:100;not null"                  json:"vehicleName"`
	VehicleGroundLevel float64       `gorm:"column:vehicle_ground_level;not null"                   json:"vehicleGroundLevel"`
	Status             PotholeStatus `gorm:"column:pothole_status;size:20;not null;default:pending;index:idx_pothole_status_created,priority:1" json:"status"`
	ReportedByID       uuid.UUID     `gorm:"column:reported_by;type:uuid;not null;index"          json:"-"`
	ReportedBy         *Reporter     `gorm:"foreignKey:ReportedByID"                                json:"reportedBy,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_pothole_status_created,priority:2;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null"                                                   json:"updatedAt"`
}

func (PotholeReport) TableName() string {
	return "pothole_reports"
}

// BeforeCreate assigns the id and refuses to persist a status outside the allowed set.
func (p *PotholeReport) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if !p.Status.Valid() {
		return errs.Validation("invalid status")
	}
	return nil
}
