package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func timePtr(t time.Time) *time.Time { return &t }

func TestPostgresStoreActiveDoctors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQueryer(mock)
	rows := pgxmock.NewRows([]string{"id", "name", "specialty", "branch_id", "branch_name", "phone_number"}).
		AddRow("d1", "Dr. Sara Khalid", strPtr("Orthodontics"), strPtr("b1"), strPtr("Olaya"), (*string)(nil)).
		AddRow("d2", "Dr. Omar", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil))
	mock.ExpectQuery("SELECT d.id::text, d.name").WillReturnRows(rows)

	doctors, err := store.ActiveDoctors(context.Background())
	if err != nil {
		t.Fatalf("active doctors: %v", err)
	}
	if len(doctors) != 2 {
		t.Fatalf("expected 2 doctors, got %d", len(doctors))
	}
	if doctors[0].BranchName != "Olaya" || doctors[0].Specialty != "Orthodontics" || !doctors[0].IsActive {
		t.Fatalf("unexpected first doctor: %#v", doctors[0])
	}
	if doctors[1].BranchID != nil || doctors[1].Specialty != "" {
		t.Fatalf("expected null columns to stay empty: %#v", doctors[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreActiveServicesAndBranches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQueryer(mock)
	mock.ExpectQuery("FROM services").WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "description", "base_price"}).
			AddRow("s1", "Teeth Cleaning", strPtr("Scaling and polish"), floatPtr(150)),
	)
	mock.ExpectQuery("FROM branches").WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "city", "address", "phone", "working_hours"}).
			AddRow("b1", "Olaya", strPtr("Riyadh"), (*string)(nil), strPtr("0112223333"), []byte(`{"from":"9:00","to":"21:00"}`)).
			AddRow("b2", "Corniche", strPtr("Jeddah"), (*string)(nil), (*string)(nil), []byte(`"Sat-Thu"`)),
	)

	services, err := store.ActiveServices(context.Background())
	if err != nil {
		t.Fatalf("active services: %v", err)
	}
	if len(services) != 1 || services[0].BasePrice == nil || *services[0].BasePrice != 150 {
		t.Fatalf("unexpected services: %#v", services)
	}

	branches, err := store.ActiveBranches(context.Background())
	if err != nil {
		t.Fatalf("active branches: %v", err)
	}
	if got := branches[0].WorkingHours.String(); got != "9:00 - 21:00" {
		t.Fatalf("expected structured hours, got %q", got)
	}
	if got := branches[1].WorkingHours.String(); got != "Sat-Thu" {
		t.Fatalf("expected text hours, got %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreActiveOffersPassesTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQueryer(mock)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM offers").WithArgs(at).WillReturnRows(
		pgxmock.NewRows([]string{"id", "title", "description", "discount_type", "discount_value", "start_date", "end_date", "related_service_id"}).
			AddRow("o1", "Ramadan whitening", (*string)(nil), strPtr("percentage"), floatPtr(20), timePtr(at.AddDate(0, -1, 0)), (*time.Time)(nil), strPtr("s1")),
	)

	offers, err := store.ActiveOffers(context.Background(), at)
	if err != nil {
		t.Fatalf("active offers: %v", err)
	}
	if len(offers) != 1 || offers[0].DiscountType != DiscountPercentage || offers[0].ServiceID == nil {
		t.Fatalf("unexpected offers: %#v", offers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreAllActiveOffersSkipsDateRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQueryer(mock)
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE is_active\s+ORDER BY created_at, id`).WillReturnRows(
		pgxmock.NewRows([]string{"id", "title", "description", "discount_type", "discount_value", "start_date", "end_date", "related_service_id"}).
			AddRow("o2", "Next year", strPtr("Early bird"), strPtr("fixed"), floatPtr(50), timePtr(start), (*time.Time)(nil), (*string)(nil)),
	)

	offers, err := store.AllActiveOffers(context.Background())
	if err != nil {
		t.Fatalf("all active offers: %v", err)
	}
	if len(offers) != 1 || offers[0].StartDate == nil || !offers[0].StartDate.Equal(start) {
		t.Fatalf("unexpected offers: %#v", offers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreWrapsQueryErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	boom := errors.New("connection refused")
	mock.ExpectQuery("FROM services").WillReturnError(boom)

	_, err = newPostgresStoreWithQueryer(mock).ActiveServices(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
