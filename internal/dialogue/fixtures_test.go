package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/FLANsa/clinic-ai-bot/internal/appointments"
	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
	"github.com/FLANsa/clinic-ai-bot/internal/history"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
)

var errStoreDown = errors.New("connection refused")

func strPtr(s string) *string        { return &s }
func floatPtr(f float64) *float64    { return &f }
func timePtr(t time.Time) *time.Time { return &t }

// seededCatalog is a small two-branch clinic.
func seededCatalog() catalog.Snapshot {
	return catalog.Snapshot{
		Branches: []catalog.Branch{
			{ID: "br-1", Name: "Olaya Branch", City: "Riyadh", Address: "King Fahd Road", Phone: "0112345678", IsActive: true,
				WorkingHours: catalog.WorkingHours{From: "09:00", To: "21:00"}},
			{ID: "br-2", Name: "Corniche Branch", City: "Jeddah", IsActive: true},
		},
		Services: []catalog.Service{
			{ID: "svc-1", Name: "Teeth Cleaning", Description: "Scaling and polishing", BasePrice: floatPtr(150), IsActive: true},
			{ID: "svc-2", Name: "Teeth Whitening", BasePrice: floatPtr(800), IsActive: true},
			{ID: "svc-3", Name: "General Checkup", IsActive: true},
		},
		Doctors: []catalog.Doctor{
			{ID: "doc-1", Name: "Dr. Sara Khalid", Specialty: "Orthodontics", BranchID: strPtr("br-1"), IsActive: true},
			{ID: "doc-2", Name: "Dr. Omar Nasser", BranchID: strPtr("br-2"), IsActive: true},
		},
		Offers: []catalog.Offer{
			{ID: "off-1", Title: "Summer whitening", DiscountType: catalog.DiscountPercentage, DiscountValue: floatPtr(20), IsActive: true},
		},
	}
}

// failingCatalog fails every read.
type failingCatalog struct{}

func (failingCatalog) ActiveDoctors(context.Context) ([]catalog.Doctor, error) {
	return nil, errStoreDown
}

func (failingCatalog) ActiveServices(context.Context) ([]catalog.Service, error) {
	return nil, errStoreDown
}

func (failingCatalog) ActiveBranches(context.Context) ([]catalog.Branch, error) {
	return nil, errStoreDown
}

func (failingCatalog) ActiveOffers(context.Context, time.Time) ([]catalog.Offer, error) {
	return nil, errStoreDown
}

// stubCompletion replies with a fixed text, or fails.
type stubCompletion struct {
	mu       sync.Mutex
	reply    string
	err      error
	panicMsg string
	requests []llm.Request
}

func (s *stubCompletion) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.reply}, nil
}

func (s *stubCompletion) lastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return llm.Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *stubCompletion) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// flakyHistory wraps a memory repository with injectable failures.
type flakyHistory struct {
	*history.MemoryRepository
	loadErr   error
	appendErr error
	appended  []history.Turn
}

func newFlakyHistory() *flakyHistory {
	return &flakyHistory{MemoryRepository: history.NewMemoryRepository()}
}

func (h *flakyHistory) Load(ctx context.Context, userID, channel string, limit int) (history.Window, error) {
	if h.loadErr != nil {
		return nil, h.loadErr
	}
	return h.MemoryRepository.Load(ctx, userID, channel, limit)
}

func (h *flakyHistory) Append(ctx context.Context, turn history.Turn) error {
	h.appended = append(h.appended, turn)
	if h.appendErr != nil {
		return h.appendErr
	}
	return h.MemoryRepository.Append(ctx, turn)
}

// failingWriter rejects every appointment.
type failingWriter struct{ calls int }

func (w *failingWriter) Create(context.Context, appointments.Appointment) (appointments.Appointment, error) {
	w.calls++
	return appointments.Appointment{}, errStoreDown
}

// fixedNow is a Sunday morning in Riyadh.
func fixedNow() time.Time {
	return time.Date(2024, time.March, 10, 9, 30, 0, 0, riyadh())
}

var riyadhTZ = time.FixedZone("AST", 3*60*60)

func riyadh() *time.Location { return riyadhTZ }

func windowOf(inbound ...string) history.Window {
	w := make(history.Window, 0, len(inbound))
	for _, text := range inbound {
		w = append(w, history.Turn{UserID: "u", Channel: "whatsapp", InboundText: text, OutboundText: "ok"})
	}
	return w
}
