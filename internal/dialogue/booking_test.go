package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLANsa/clinic-ai-bot/internal/appointments"
	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

func newTestMachine(writer AppointmentWriter) *BookingMachine {
	return NewBookingMachine(writer, DefaultVocabulary(), LocaleFor("en"), riyadh(), logging.Default().Component("test"))
}

func fullSnapshot() Snapshot {
	snap := seededCatalog()
	return Snapshot{Doctors: snap.Doctors, Services: snap.Services, Branches: snap.Branches}
}

func TestBookingMachine_DeriveDraft(t *testing.T) {
	m := newTestMachine(appointments.NewMemoryStore())

	tests := []struct {
		name    string
		userID  string
		message string
		window  []string
		check   func(t *testing.T, d BookingDraft)
	}{
		{
			name:    "explicit name and saudi mobile",
			userID:  "web-session",
			message: "book please, my name is Ahmed Ali and my phone is +966501234567",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "Ahmed Ali", d.PatientName)
				assert.Equal(t, "+966501234567", d.Phone)
			},
		},
		{
			name:    "arabic name and arabic digits",
			userID:  "ig-123abc",
			message: "ابي احجز، اسمي سارة محمد ورقمي ٠٥٥١٢٣٤٥٦٧",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "سارة محمد", d.PatientName)
				assert.Equal(t, "0551234567", d.Phone)
			},
		},
		{
			name:    "mobile number wins over another ten digit number",
			userID:  "u",
			message: "book, my name is Ahmed Ali, file 1234567890, mobile 0551234567",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "0551234567", d.Phone)
			},
		},
		{
			name:    "plain ten digits when no mobile number is given",
			userID:  "u",
			message: "book, my name is Ahmed Ali, call 1234567890",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "1234567890", d.Phone)
			},
		},
		{
			name:    "numeric user id stands in for phone",
			userID:  "966509998877",
			message: "book",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "966509998877", d.Phone)
				assert.Empty(t, d.PatientName)
			},
		},
		{
			name:    "service and branch named in current message",
			userID:  "u",
			message: "book teeth whitening at corniche branch",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "svc-2", d.ServiceID)
				assert.Equal(t, "br-2", d.BranchID)
			},
		},
		{
			name:    "current message wins over window",
			userID:  "u",
			message: "book general checkup in jeddah",
			window:  []string{"teeth cleaning in riyadh"},
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "svc-3", d.ServiceID)
				assert.Equal(t, "br-2", d.BranchID)
			},
		},
		{
			name:    "service by shared keyword",
			userID:  "u",
			message: "book a whitening session",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "svc-2", d.ServiceID)
			},
		},
		{
			name:    "defaults to first service and branch",
			userID:  "u",
			message: "book",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "svc-1", d.ServiceID)
				assert.Equal(t, "br-1", d.BranchID)
				assert.Empty(t, d.DoctorID)
			},
		},
		{
			name:    "doctor by full name",
			userID:  "u",
			message: "book with Dr Omar Nasser",
			check: func(t *testing.T, d BookingDraft) {
				assert.Equal(t, "doc-2", d.DoctorID)
				assert.Equal(t, "Dr. Omar Nasser", d.DoctorName)
			},
		},
		{
			name:    "time hint from window",
			userID:  "u",
			message: "book it",
			window:  []string{"tomorrow at 5pm works"},
			check: func(t *testing.T, d BookingDraft) {
				assert.True(t, d.TimeHinted)
				assert.Equal(t, time.Date(2024, 3, 11, 17, 0, 0, 0, riyadh()), d.RequestedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := BookingRequest{Channel: "whatsapp", UserID: tt.userID, Message: tt.message, Window: windowOf(tt.window...)}
			tt.check(t, m.DeriveDraft(req, fullSnapshot(), fixedNow()))
		})
	}
}

// An earlier name in the window beats a later correction because extraction
// takes the first match in text order.
func TestBookingMachine_DeriveDraftFirstMatchWins(t *testing.T) {
	m := newTestMachine(appointments.NewMemoryStore())
	req := BookingRequest{
		UserID:  "u",
		Message: "book now",
		Window:  windowOf("my name is Ahmed Ali", "sorry, my name is Khalid Saad", "0501111111", "actually 0502222222"),
	}

	d := m.DeriveDraft(req, fullSnapshot(), fixedNow())
	assert.Equal(t, "Ahmed Ali", d.PatientName)
	assert.Equal(t, "0501111111", d.Phone)
}

func TestBookingMachine_DeriveDraftLooksBackFiveTurns(t *testing.T) {
	m := newTestMachine(appointments.NewMemoryStore())
	req := BookingRequest{
		UserID:  "u",
		Message: "book",
		Window:  windowOf("my name is Ahmed Ali", "a", "b", "c", "d", "e"),
	}

	d := m.DeriveDraft(req, Snapshot{}, fixedNow())
	assert.Empty(t, d.PatientName)
}

func TestBookingMachine_AttemptMissingFields(t *testing.T) {
	store := appointments.NewMemoryStore()
	m := newTestMachine(store)

	out := m.Attempt(context.Background(), BookingRequest{
		Channel: "whatsapp",
		UserID:  "966501234567",
		Message: "I want to book an appointment",
	}, Snapshot{}, fixedNow())

	assert.Equal(t, BookingCollecting, out.State)
	assert.False(t, out.Success)
	assert.Equal(t, []Field{FieldService, FieldBranch}, out.Missing)
	assert.Equal(t, "To book your appointment I still need: service, branch. Could you share them?", out.Reply)
	assert.Empty(t, store.List())
}

func TestBookingMachine_AttemptCommits(t *testing.T) {
	store := appointments.NewMemoryStore()
	m := newTestMachine(store)

	out := m.Attempt(context.Background(), BookingRequest{
		Channel: "instagram",
		UserID:  "ig-42",
		Message: "book me in",
		Window:  windowOf("My name is Ahmed Ali", "My number is 0501234567", "teeth cleaning", "Riyadh branch"),
	}, fullSnapshot(), fixedNow())

	require.NoError(t, out.Err)
	assert.Equal(t, BookingCommitted, out.State)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.AppointmentID)

	created := store.List()
	require.Len(t, created, 1)
	appt := created[0]
	assert.Equal(t, out.AppointmentID, appt.ID)
	assert.Equal(t, "Ahmed Ali", appt.PatientName)
	assert.Equal(t, "0501234567", appt.Phone)
	assert.Equal(t, "svc-1", appt.ServiceID)
	assert.Equal(t, "br-1", appt.BranchID)
	assert.Nil(t, appt.DoctorID)
	assert.Equal(t, appointments.StatusPending, appt.Status)
	assert.Equal(t, "automated booking via instagram", appt.Notes)
	assert.Equal(t, time.Date(2024, 3, 13, 10, 0, 0, 0, riyadh()), appt.ScheduledAt)

	assert.Contains(t, out.Reply, "Your appointment is booked")
	assert.Contains(t, out.Reply, "Date: 2024-03-13 10:00 AM")
	assert.Contains(t, out.Reply, "Branch: Olaya Branch")
	assert.Contains(t, out.Reply, "Service: Teeth Cleaning")
	assert.Contains(t, out.Reply, "0501234567")
	assert.NotContains(t, out.Reply, "Doctor:")
}

func TestBookingMachine_AttemptCommitFailure(t *testing.T) {
	writer := &failingWriter{}
	m := newTestMachine(writer)

	out := m.Attempt(context.Background(), BookingRequest{
		Channel: "whatsapp",
		UserID:  "966501234567",
		Message: "book, my name is Ahmed Ali",
	}, fullSnapshot(), fixedNow())

	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, BookingCollecting, out.State)
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, errStoreDown)
	assert.Equal(t, LocaleFor("en").BookingFailed, out.Reply)
}

// The writer is never reached unless name, phone, service and branch are all
// present.
func TestBookingMachine_NeverCommitsIncompleteDraft(t *testing.T) {
	snap := fullSnapshot()
	tests := []struct {
		name    string
		userID  string
		message string
		snap    Snapshot
	}{
		{"no name", "966501234567", "book", snap},
		{"no phone", "web", "book, my name is Ahmed Ali", snap},
		{"no services", "966501234567", "book, my name is Ahmed Ali", Snapshot{Branches: snap.Branches}},
		{"no branches", "966501234567", "book, my name is Ahmed Ali", Snapshot{Services: snap.Services}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &failingWriter{}
			m := newTestMachine(writer)
			out := m.Attempt(context.Background(), BookingRequest{UserID: tt.userID, Message: tt.message}, tt.snap, fixedNow())

			assert.Zero(t, writer.calls)
			assert.Equal(t, BookingCollecting, out.State)
			assert.NotEmpty(t, out.Missing)
			assert.False(t, out.Draft.Ready())
		})
	}
}

func TestBookingMachine_ArabicLocaleConfirmation(t *testing.T) {
	store := appointments.NewMemoryStore()
	m := NewBookingMachine(store, DefaultVocabulary(), LocaleFor("ar"), riyadh(), nil)

	out := m.Attempt(context.Background(), BookingRequest{
		Channel: "whatsapp",
		UserID:  "966501234567",
		Message: "ابي احجز تنظيف في فرع الرياض مع الدكتور Sara Khalid، اسمي نورة سعد",
	}, Snapshot{
		Services: []catalog.Service{{ID: "svc-ar", Name: "تنظيف الأسنان", IsActive: true}},
		Branches: []catalog.Branch{{ID: "br-ar", Name: "فرع العليا", City: "الرياض", IsActive: true}},
		Doctors:  []catalog.Doctor{{ID: "doc-1", Name: "Dr. Sara Khalid", IsActive: true}},
	}, fixedNow())

	require.Equal(t, BookingCommitted, out.State, out.Reply)
	assert.True(t, strings.HasPrefix(out.Reply, "✅ تم حجز موعدك بنجاح!"))
	assert.Contains(t, out.Reply, "الفرع: فرع العليا")
	assert.Contains(t, out.Reply, "الطبيب: Dr. Sara Khalid")
	assert.Equal(t, "نورة سعد", out.Draft.PatientName)
}

func TestRequestedTime(t *testing.T) {
	vocab := DefaultVocabulary()
	loc := riyadh()

	tests := []struct {
		name       string
		text       string
		want       time.Time
		wantHinted bool
	}{
		{"no hint", "book please", time.Date(2024, 3, 13, 10, 0, 0, 0, loc), false},
		{"tomorrow pm", "tomorrow at 5pm", time.Date(2024, 3, 11, 17, 0, 0, 0, loc), true},
		{"day after tomorrow clock", "day after tomorrow 10:30", time.Date(2024, 3, 12, 10, 30, 0, 0, loc), true},
		{"day and month", "15/3 at 4:15 pm", time.Date(2024, 3, 15, 16, 15, 0, 0, loc), true},
		{"past date rolls over", "1/2", time.Date(2025, 2, 1, 10, 0, 0, 0, loc), true},
		{"invalid date ignored", "31/2", time.Date(2024, 3, 13, 10, 0, 0, 0, loc), false},
		{"noon", "12 pm", time.Date(2024, 3, 13, 12, 0, 0, 0, loc), true},
		{"arabic tomorrow evening", "بكرة الساعة ٥ مساء", time.Date(2024, 3, 11, 17, 0, 0, 0, loc), true},
		{"arabic morning", "بعد بكرة ٩ صباحا", time.Date(2024, 3, 12, 9, 0, 0, 0, loc), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hinted := requestedTime(vocab, tt.text, fixedNow(), loc)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantHinted, hinted)
		})
	}
}
