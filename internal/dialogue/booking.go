package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FLANsa/clinic-ai-bot/internal/appointments"
	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
	"github.com/FLANsa/clinic-ai-bot/internal/history"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

const bookingWindow = 5

// BookingState is where a booking attempt ended up.
type BookingState string

const (
	BookingCollecting BookingState = "collecting"
	BookingReady      BookingState = "ready"
	BookingCommitted  BookingState = "committed"
)

// Field is a required booking slot.
type Field string

const (
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldService Field = "service"
	FieldBranch  Field = "branch"
)

// BookingDraft is rebuilt from the conversation on every booking message.
// It is never stored.
type BookingDraft struct {
	PatientName string
	Phone       string
	ServiceID   string
	ServiceName string
	BranchID    string
	BranchName  string
	DoctorID    string
	DoctorName  string
	RequestedAt time.Time
	TimeHinted  bool
}

// Missing lists the required slots that are still empty, in a fixed order.
func (d BookingDraft) Missing() []Field {
	var missing []Field
	if strings.TrimSpace(d.PatientName) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(d.Phone) == "" {
		missing = append(missing, FieldPhone)
	}
	if d.ServiceID == "" {
		missing = append(missing, FieldService)
	}
	if d.BranchID == "" {
		missing = append(missing, FieldBranch)
	}
	return missing
}

// Ready reports whether the draft may be committed.
func (d BookingDraft) Ready() bool {
	return len(d.Missing()) == 0
}

// BookingOutcome is the result of one Attempt.
type BookingOutcome struct {
	State         BookingState
	Success       bool
	AppointmentID string
	Missing       []Field
	Reply         string
	Draft         BookingDraft
	Err           error
}

// BookingRequest is the conversational input to a booking attempt.
type BookingRequest struct {
	Channel string
	UserID  string
	Message string
	Window  history.Window
}

// AppointmentWriter commits an appointment atomically.
type AppointmentWriter interface {
	Create(ctx context.Context, appt appointments.Appointment) (appointments.Appointment, error)
}

// BookingMachine runs the slot-filling protocol. It keeps no state between
// calls; every attempt re-derives the draft from the recent window.
type BookingMachine struct {
	vocab  Vocabulary
	locale Locale
	writer AppointmentWriter
	loc    *time.Location
	logger *slog.Logger
}

func NewBookingMachine(writer AppointmentWriter, vocab Vocabulary, locale Locale, loc *time.Location, logger *slog.Logger) *BookingMachine {
	if writer == nil {
		panic("dialogue: appointment writer required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingMachine{vocab: vocab.clone(), locale: locale, writer: writer, loc: loc, logger: logger}
}

// DeriveDraft extracts booking slots from the current message and the last
// five inbound turns. It has no side effects.
//
// Every extractor returns the first match in text order, so an earlier value
// can win over a later correction (a restated name or phone). This is known
// behaviour; the draft is not reconciled against previous drafts.
func (m *BookingMachine) DeriveDraft(req BookingRequest, snap Snapshot, now time.Time) BookingDraft {
	lines := append([]string{req.Message}, req.Window.Last(bookingWindow).InboundTexts()...)
	full := normalizeDigits(strings.Join(lines, "\n"))
	message := strings.ToLower(req.Message)
	fullLower := strings.ToLower(full)

	var d BookingDraft
	d.PatientName = m.extractName(full)
	d.Phone = m.extractPhone(full, req.UserID)

	if svc, ok := m.matchService(snap.Services, message, fullLower); ok {
		d.ServiceID, d.ServiceName = svc.ID, svc.Name
	} else if len(snap.Services) > 0 {
		d.ServiceID, d.ServiceName = snap.Services[0].ID, snap.Services[0].Name
	}

	if br, ok := matchBranch(snap.Branches, message, fullLower); ok {
		d.BranchID, d.BranchName = br.ID, br.Name
	} else if len(snap.Branches) > 0 {
		d.BranchID, d.BranchName = snap.Branches[0].ID, snap.Branches[0].Name
	}

	if doc, ok := m.matchDoctor(snap.Doctors, message, fullLower); ok {
		d.DoctorID, d.DoctorName = doc.ID, doc.Name
	}

	d.RequestedAt, d.TimeHinted = requestedTime(m.vocab, full, now, m.loc)
	return d
}

// Attempt derives the draft and commits it when complete.
func (m *BookingMachine) Attempt(ctx context.Context, req BookingRequest, snap Snapshot, now time.Time) BookingOutcome {
	draft := m.DeriveDraft(req, snap, now)
	out := BookingOutcome{State: BookingCollecting, Draft: draft}

	if missing := draft.Missing(); len(missing) > 0 {
		out.Missing = missing
		out.Reply = m.missingReply(missing)
		return out
	}

	out.State = BookingReady
	appt := appointments.Appointment{
		PatientName: draft.PatientName,
		Phone:       draft.Phone,
		BranchID:    draft.BranchID,
		ServiceID:   draft.ServiceID,
		ScheduledAt: draft.RequestedAt,
		Channel:     req.Channel,
		Status:      appointments.StatusPending,
		Type:        appointments.TypeConsultation,
		Notes:       "automated booking via " + req.Channel,
	}
	if draft.DoctorID != "" {
		id := draft.DoctorID
		appt.DoctorID = &id
	}

	created, err := m.writer.Create(ctx, appt)
	if err != nil {
		m.logger.Error("appointment commit failed",
			"channel", req.Channel,
			"user", logging.RedactID(req.UserID),
			"error", err,
		)
		out.State = BookingCollecting
		out.Reply = m.locale.BookingFailed
		out.Err = err
		return out
	}

	out.State = BookingCommitted
	out.Success = true
	out.AppointmentID = created.ID
	out.Reply = m.confirmation(draft)
	return out
}

func (m *BookingMachine) extractName(text string) string {
	for _, re := range m.vocab.NamePatterns {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		name := match[0]
		if len(match) == 2 {
			name = match[1]
		}
		if name = strings.Join(strings.Fields(name), " "); name != "" {
			return name
		}
	}
	return ""
}

func (m *BookingMachine) extractPhone(text, userID string) string {
	for _, re := range m.vocab.PhonePatterns {
		if phone := re.FindString(text); phone != "" {
			return phone
		}
	}
	if isAllDigits(userID) {
		return userID
	}
	return ""
}

// matchService prefers a service named in the current message, then one named
// anywhere in the recent window, then one sharing a service keyword.
func (m *BookingMachine) matchService(services []catalog.Service, message, full string) (catalog.Service, bool) {
	for _, text := range []string{message, full} {
		for _, s := range services {
			if name := strings.ToLower(strings.TrimSpace(s.Name)); name != "" && strings.Contains(text, name) {
				return s, true
			}
		}
	}
	for _, s := range services {
		if sharesKeyword(m.vocab.ServiceKeywords, full, strings.ToLower(s.Name)) {
			return s, true
		}
	}
	return catalog.Service{}, false
}

func matchBranch(branches []catalog.Branch, message, full string) (catalog.Branch, bool) {
	for _, text := range []string{message, full} {
		for _, b := range branches {
			name := strings.ToLower(strings.TrimSpace(b.Name))
			city := strings.ToLower(strings.TrimSpace(b.City))
			if (name != "" && strings.Contains(text, name)) || (city != "" && strings.Contains(text, city)) {
				return b, true
			}
		}
	}
	return catalog.Branch{}, false
}

func (m *BookingMachine) matchDoctor(doctors []catalog.Doctor, message, full string) (catalog.Doctor, bool) {
	for _, text := range []string{message, full} {
		stripped := m.vocab.stripHonorifics(text)
		for _, d := range doctors {
			if name := m.vocab.stripHonorifics(d.Name); name != "" && strings.Contains(stripped, name) {
				return d, true
			}
		}
	}
	return catalog.Doctor{}, false
}

func (m *BookingMachine) missingReply(missing []Field) string {
	labels := make([]string, 0, len(missing))
	for _, f := range missing {
		labels = append(labels, m.label(f))
	}
	return fmt.Sprintf(m.locale.MissingFields, strings.Join(labels, m.locale.ListJoiner))
}

func (m *BookingMachine) label(f Field) string {
	switch f {
	case FieldName:
		return m.locale.FieldName
	case FieldPhone:
		return m.locale.FieldPhone
	case FieldService:
		return m.locale.FieldService
	case FieldBranch:
		return m.locale.FieldBranch
	default:
		return string(f)
	}
}

func (m *BookingMachine) confirmation(d BookingDraft) string {
	lines := []string{
		m.locale.ConfirmHeader,
		m.locale.ConfirmDate + d.RequestedAt.In(m.loc).Format("2006-01-02 03:04 PM"),
		m.locale.ConfirmBranch + orDefault(d.BranchName, m.locale.NotSpecified),
		m.locale.ConfirmService + orDefault(d.ServiceName, m.locale.NotSpecified),
	}
	if d.DoctorName != "" {
		lines = append(lines, m.locale.ConfirmDoctor+d.DoctorName)
	}
	lines = append(lines, fmt.Sprintf(m.locale.ConfirmFollow, d.Phone), m.locale.ConfirmThanks)
	return strings.Join(lines, "\n")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
