package appointments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store persists appointments atomically.
type Store interface {
	Create(ctx context.Context, appt Appointment) (Appointment, error)
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore writes the patient upsert and the appointment insert in one
// transaction.
type PostgresStore struct {
	db     txBeginner
	tracer trace.Tracer
	now    func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return newPostgresStoreWithDB(pool)
}

func newPostgresStoreWithDB(db txBeginner) *PostgresStore {
	return &PostgresStore{db: db, tracer: otel.Tracer("clinicbot.internal.appointments"), now: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, appt Appointment) (_ Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.create")
	defer span.End()

	if err := appt.Validate(); err != nil {
		return Appointment{}, err
	}
	appt = withDefaults(appt, s.now)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			span.RecordError(err)
			_ = tx.Rollback(ctx)
		}
	}()

	patientQuery := `
		INSERT INTO patients (id, name, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET updated_at = now()
		RETURNING id::text
	`
	if err = tx.QueryRow(ctx, patientQuery, uuid.NewString(), appt.PatientName, appt.Phone).Scan(&appt.PatientID); err != nil {
		return Appointment{}, fmt.Errorf("appointments: upsert patient: %w", err)
	}

	insertQuery := `
		INSERT INTO appointments (id, patient_id, patient_name, phone, branch_id, doctor_id, service_id,
		                          scheduled_at, channel, status, appointment_type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if _, err = tx.Exec(ctx, insertQuery, appt.ID, appt.PatientID, appt.PatientName, appt.Phone, appt.BranchID,
		appt.DoctorID, appt.ServiceID, appt.ScheduledAt, appt.Channel, appt.Status, appt.Type, appt.Notes,
		appt.CreatedAt); err != nil {
		return Appointment{}, fmt.Errorf("appointments: insert: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("appointments: commit: %w", err)
	}
	return appt, nil
}

// MemoryStore keeps appointments in process memory for the local harness.
type MemoryStore struct {
	mu    sync.Mutex
	items []Appointment
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, appt Appointment) (Appointment, error) {
	if err := appt.Validate(); err != nil {
		return Appointment{}, err
	}
	appt = withDefaults(appt, s.now)
	if appt.PatientID == "" {
		appt.PatientID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(appt.Phone)).String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, appt)
	return appt, nil
}

// List returns a copy of everything created so far.
func (s *MemoryStore) List() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Appointment(nil), s.items...)
}

func withDefaults(appt Appointment, now func() time.Time) Appointment {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = StatusPending
	}
	if appt.Type == "" {
		appt.Type = TypeConsultation
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now().UTC()
	}
	return appt
}
