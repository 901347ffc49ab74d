package appointments

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending = "pending"

	TypeConsultation = "consultation"
)

// ErrIncomplete is returned when a required booking field is empty.
var ErrIncomplete = errors.New("appointments: name, phone, service and branch are required")

// Appointment is a booked visit. It is independent of the conversation that
// produced it.
type Appointment struct {
	ID          string
	PatientID   string
	PatientName string
	Phone       string
	BranchID    string
	ServiceID   string
	DoctorID    *string
	ScheduledAt time.Time
	Channel     string
	Status      string
	Type        string
	Notes       string
	CreatedAt   time.Time
}

// Validate enforces the four required fields.
func (a Appointment) Validate() error {
	for _, v := range []string{a.PatientName, a.Phone, a.BranchID, a.ServiceID} {
		if strings.TrimSpace(v) == "" {
			return ErrIncomplete
		}
	}
	return nil
}
