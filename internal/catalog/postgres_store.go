package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore reads the catalog tables.
type PostgresStore struct {
	db queryer
}

// NewPostgresStore creates a catalog store backed by pgx.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQueryer(db queryer) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ActiveDoctors(ctx context.Context) ([]Doctor, error) {
	query := `
		SELECT d.id::text, d.name, d.specialty, d.branch_id::text, b.name, d.phone_number
		FROM doctors d
		LEFT JOIN branches b ON b.id = d.branch_id
		WHERE d.is_active
		ORDER BY d.created_at, d.id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var (
			d                            Doctor
			specialty, branchName, phone *string
		)
		if err := rows.Scan(&d.ID, &d.Name, &specialty, &d.BranchID, &branchName, &phone); err != nil {
			return nil, fmt.Errorf("catalog: scan doctor: %w", err)
		}
		d.Specialty = deref(specialty)
		d.BranchName = deref(branchName)
		d.Phone = deref(phone)
		d.IsActive = true
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate doctors: %w", err)
	}
	return doctors, nil
}

func (s *PostgresStore) ActiveServices(ctx context.Context) ([]Service, error) {
	query := `
		SELECT id::text, name, description, base_price::float8
		FROM services
		WHERE is_active
		ORDER BY created_at, id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: query services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var (
			svc         Service
			description *string
		)
		if err := rows.Scan(&svc.ID, &svc.Name, &description, &svc.BasePrice); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		svc.Description = deref(description)
		svc.IsActive = true
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return services, nil
}

func (s *PostgresStore) ActiveBranches(ctx context.Context) ([]Branch, error) {
	query := `
		SELECT id::text, name, city, address, phone, working_hours
		FROM branches
		WHERE is_active
		ORDER BY created_at, id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: query branches: %w", err)
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var (
			b                    Branch
			city, address, phone *string
			hours                []byte
		)
		if err := rows.Scan(&b.ID, &b.Name, &city, &address, &phone, &hours); err != nil {
			return nil, fmt.Errorf("catalog: scan branch: %w", err)
		}
		b.City = deref(city)
		b.Address = deref(address)
		b.Phone = deref(phone)
		if len(hours) > 0 {
			// Malformed hours render as unknown rather than failing the read.
			_ = json.Unmarshal(hours, &b.WorkingHours)
		}
		b.IsActive = true
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate branches: %w", err)
	}
	return branches, nil
}

const offerColumns = `
		SELECT id::text, title, description, discount_type, discount_value::float8,
		       start_date, end_date, related_service_id::text
		FROM offers
		WHERE is_active`

func (s *PostgresStore) ActiveOffers(ctx context.Context, at time.Time) ([]Offer, error) {
	return s.queryOffers(ctx, offerColumns+`
		  AND (start_date IS NULL OR start_date <= $1)
		  AND (end_date IS NULL OR end_date >= $1)
		ORDER BY created_at, id`, at)
}

func (s *PostgresStore) AllActiveOffers(ctx context.Context) ([]Offer, error) {
	return s.queryOffers(ctx, offerColumns+`
		ORDER BY created_at, id`)
}

func (s *PostgresStore) queryOffers(ctx context.Context, query string, args ...any) ([]Offer, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query offers: %w", err)
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		var (
			o                         Offer
			description, discountType *string
		)
		if err := rows.Scan(&o.ID, &o.Title, &description, &discountType, &o.DiscountValue, &o.StartDate, &o.EndDate, &o.ServiceID); err != nil {
			return nil, fmt.Errorf("catalog: scan offer: %w", err)
		}
		o.Description = deref(description)
		o.DiscountType = deref(discountType)
		o.IsActive = true
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate offers: %w", err)
	}
	return offers, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
