package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FLANsa/clinic-ai-bot/internal/history"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// IntentBooking tags turns handled by the booking protocol.
const IntentBooking = "appointment_booking"

const (
	historyLoadLimit   = 10
	defaultMaxTokens   = 500
	persistTimeout     = 5 * time.Second
	diagnosticsMaxRune = 100
)

// HistoryRepository loads and appends conversation turns.
type HistoryRepository interface {
	Load(ctx context.Context, userID, channel string, limit int) (history.Window, error)
	Append(ctx context.Context, turn history.Turn) error
}

// TextCompletion is the language-model capability. It may fail at any time,
// including when no provider is configured.
type TextCompletion interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Recorder receives per-turn telemetry. All methods must be safe for
// concurrent use.
type Recorder interface {
	ObserveTurn(channel, intent, outcome string, elapsed time.Duration)
	ObserveDegraded(stage, reason string)
	ObserveBooking(state string)
}

// Result is what the orchestrator hands back to a transport.
type Result struct {
	ReplyText    string
	Intent       string
	NeedsHandoff bool
	Unrecognized bool
	ContextUsed  bool

	// Booking is set when the booking protocol ran.
	Booking *BookingOutcome
	// Degraded lists every collaborator failure absorbed along the way.
	Degraded []Degraded
}

// Orchestrator sequences history, classification, catalog context, booking
// and completion for one inbound message. It holds no per-user state and is
// safe for concurrent use.
type Orchestrator struct {
	history    HistoryRepository
	catalog    *ReferenceCatalog
	classifier *Classifier
	formatter  *Formatter
	booking    *BookingMachine
	completion TextCompletion

	locale      Locale
	logger      *slog.Logger
	recorder    Recorder
	tracer      trace.Tracer
	now         func() time.Time
	diagnostics bool
	maxTokens   int32
	temperature float32
	llmTimeout  time.Duration
}

type orchestratorConfig struct {
	vocab       Vocabulary
	locale      Locale
	currency    string
	location    *time.Location
	logger      *logging.Logger
	recorder    Recorder
	now         func() time.Time
	diagnostics bool
	maxTokens   int32
	temperature float32
	llmTimeout  time.Duration
}

// Option configures the orchestrator.
type Option func(*orchestratorConfig)

// WithVocabulary replaces the keyword and pattern tables.
func WithVocabulary(v Vocabulary) Option {
	return func(cfg *orchestratorConfig) { cfg.vocab = v }
}

// WithLocale sets the language of replies and table headings.
func WithLocale(l Locale) Option {
	return func(cfg *orchestratorConfig) { cfg.locale = l }
}

// WithCurrency sets the label appended to prices.
func WithCurrency(label string) Option {
	return func(cfg *orchestratorConfig) { cfg.currency = label }
}

// WithLocation sets the clinic timezone used for appointment times.
func WithLocation(loc *time.Location) Option {
	return func(cfg *orchestratorConfig) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(cfg *orchestratorConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(cfg *orchestratorConfig) { cfg.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(cfg *orchestratorConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithDiagnostics echoes failure details into fallback replies. Only for
// development deployments.
func WithDiagnostics(enabled bool) Option {
	return func(cfg *orchestratorConfig) { cfg.diagnostics = enabled }
}

// WithCompletionSettings sets max tokens and temperature for completions.
func WithCompletionSettings(maxTokens int, temperature float64) Option {
	return func(cfg *orchestratorConfig) {
		if maxTokens > 0 {
			cfg.maxTokens = int32(maxTokens)
		}
		if temperature >= 0 {
			cfg.temperature = float32(temperature)
		}
	}
}

// WithCompletionTimeout bounds each completion call. Zero leaves it to the
// provider client.
func WithCompletionTimeout(d time.Duration) Option {
	return func(cfg *orchestratorConfig) {
		if d > 0 {
			cfg.llmTimeout = d
		}
	}
}

// NewOrchestrator wires the dialogue pipeline around its collaborators.
func NewOrchestrator(historyRepo HistoryRepository, reader CatalogReader, completion TextCompletion, writer AppointmentWriter, opts ...Option) *Orchestrator {
	if historyRepo == nil {
		panic("dialogue: history repository required")
	}
	if completion == nil {
		panic("dialogue: text completion required")
	}

	cfg := orchestratorConfig{
		vocab:       DefaultVocabulary(),
		locale:      LocaleFor("en"),
		location:    time.UTC,
		logger:      logging.Default(),
		now:         time.Now,
		maxTokens:   defaultMaxTokens,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.Component("dialogue")
	refs := NewReferenceCatalog(reader, cfg.vocab, logger)
	refs.now = cfg.now
	return &Orchestrator{
		history:     historyRepo,
		catalog:     refs,
		classifier:  NewClassifier(cfg.vocab),
		formatter:   NewFormatter(cfg.locale, cfg.currency),
		booking:     NewBookingMachine(writer, cfg.vocab, cfg.locale, cfg.location, logger),
		completion:  completion,
		locale:      cfg.locale,
		logger:      logger,
		recorder:    cfg.recorder,
		tracer:      otel.Tracer("clinicbot.internal.dialogue"),
		now:         cfg.now,
		diagnostics: cfg.diagnostics,
		maxTokens:   cfg.maxTokens,
		temperature: cfg.temperature,
		llmTimeout:  cfg.llmTimeout,
	}
}

// Placeholder keys for turns that arrive without a sender or channel.
const (
	AnonymousUser  = "anonymous"
	UnknownChannel = "unknown"
)

type inbound struct {
	channel string
	userID  string
	message string
}

// Handle processes one inbound message. It never returns an error: failures
// become a fallback reply flagged for handoff, and the turn is recorded either
// way. Caller cancellation does not abort processing. A blank user id or
// channel is recorded under AnonymousUser or UnknownChannel so the turn still
// satisfies the history store.
func (o *Orchestrator) Handle(ctx context.Context, channel, userID, message string) Result {
	ctx = context.WithoutCancel(ctx)
	start := o.now()
	in := inbound{
		channel: orDefault(strings.ToLower(strings.TrimSpace(channel)), UnknownChannel),
		userID:  orDefault(strings.TrimSpace(userID), AnonymousUser),
		message: strings.TrimSpace(message),
	}

	ctx, span := o.tracer.Start(ctx, "dialogue.handle", trace.WithAttributes(attribute.String("channel", in.channel)))
	defer span.End()

	outcome := "ok"
	res, err := o.run(ctx, in)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("dialogue pipeline failed",
			"channel", in.channel,
			"user", logging.RedactID(in.userID),
			"error", err,
		)
		res = o.fallback(res, err)
		outcome = "fallback"
	}

	if d := o.appendTurn(ctx, in, res); d != nil {
		res.Degraded = append(res.Degraded, *d)
	}

	if o.recorder != nil {
		for _, d := range res.Degraded {
			o.recorder.ObserveDegraded(string(d.Stage), string(d.Reason))
		}
		if res.Booking != nil {
			o.recorder.ObserveBooking(string(res.Booking.State))
		}
		o.recorder.ObserveTurn(in.channel, res.Intent, outcome, o.now().Sub(start))
	}

	o.logger.Info("dialogue turn handled",
		"channel", in.channel,
		"user", logging.RedactID(in.userID),
		"intent", res.Intent,
		"context_used", res.ContextUsed,
		"needs_handoff", res.NeedsHandoff,
		"degraded", len(res.Degraded),
	)
	return res
}

// run executes stages 1 to 4. Only completion failures and panics come back
// as errors; everything else is absorbed into res.Degraded. A panic is
// attributed to the stage that was running.
func (o *Orchestrator) run(ctx context.Context, in inbound) (res Result, err error) {
	stage := StageHistoryLoad
	defer func() {
		if r := recover(); r != nil {
			err = degrade(stage, ReasonPanic, fmt.Errorf("panic: %v", r))
		}
	}()

	window := o.loadWindow(ctx, in, &res)

	stage = StageClassify
	intent := o.classifier.Classify(in.message, window)

	if intent.WantsBooking {
		stage = StageBooking
		res.Intent = IntentBooking
		o.runBooking(ctx, in, window, &res)
		return res, nil
	}

	stage = StageCatalog
	catalogCtx, d := o.catalog.Context(ctx, intent, in.message)
	if d != nil {
		res.Degraded = append(res.Degraded, *d)
	}

	stage = StageFormat
	contextText := o.formatter.Format(catalogCtx)
	res.ContextUsed = contextText != ""

	stage = StageCompletion
	reply, err := o.complete(ctx, BuildMessages(in.channel, contextText, window, in.message))
	if err != nil {
		return res, err
	}
	res.ReplyText = reply
	return res, nil
}

func (o *Orchestrator) loadWindow(ctx context.Context, in inbound, res *Result) history.Window {
	window, err := o.history.Load(ctx, in.userID, in.channel, historyLoadLimit)
	if err != nil {
		o.logger.Warn("history load failed, continuing without context",
			"channel", in.channel,
			"user", logging.RedactID(in.userID),
			"error", err,
		)
		res.Degraded = append(res.Degraded, *degrade(StageHistoryLoad, ReasonStoreUnavailable, err))
		return history.Window{}
	}
	return window
}

func (o *Orchestrator) runBooking(ctx context.Context, in inbound, window history.Window, res *Result) {
	snap, d := o.catalog.Snapshot(ctx)
	if d != nil {
		res.Degraded = append(res.Degraded, *d)
	}
	res.ContextUsed = len(snap.Services) > 0 || len(snap.Branches) > 0 || len(snap.Doctors) > 0

	outcome := o.booking.Attempt(ctx, BookingRequest{
		Channel: in.channel,
		UserID:  in.userID,
		Message: in.message,
		Window:  window,
	}, snap, o.now())
	res.Booking = &outcome
	res.ReplyText = outcome.Reply

	if outcome.Err != nil {
		res.NeedsHandoff = true
		res.Degraded = append(res.Degraded, *degrade(StageBooking, ReasonCommitFailed, outcome.Err))
	}
}

func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message) (string, error) {
	ctx, span := o.tracer.Start(ctx, "dialogue.complete")
	defer span.End()

	if o.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.llmTimeout)
		defer cancel()
	}

	resp, err := o.completion.Complete(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		span.RecordError(err)
		return "", degrade(StageCompletion, ReasonCompletionFailed, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", degrade(StageCompletion, ReasonEmptyCompletion, nil)
	}
	return text, nil
}

// fallback replaces the reply with the localized apology and flags the turn
// for a human.
func (o *Orchestrator) fallback(res Result, err error) Result {
	var d *Degraded
	if errors.As(err, &d) {
		res.Degraded = append(res.Degraded, *d)
	}
	res.ReplyText = o.locale.Apology
	if o.diagnostics {
		res.ReplyText += fmt.Sprintf(o.locale.Diagnostics, summarize(err))
	}
	res.NeedsHandoff = true
	res.Unrecognized = true
	res.ContextUsed = false
	return res
}

func (o *Orchestrator) appendTurn(ctx context.Context, in inbound, res Result) *Degraded {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	err := o.history.Append(ctx, history.Turn{
		UserID:       in.userID,
		Channel:      in.channel,
		InboundText:  in.message,
		OutboundText: res.ReplyText,
		Intent:       res.Intent,
		ContextUsed:  res.ContextUsed,
		Unrecognized: res.Unrecognized,
		NeedsHandoff: res.NeedsHandoff,
		CreatedAt:    o.now().UTC(),
	})
	if err == nil {
		return nil
	}
	o.logger.Warn("turn append failed",
		"channel", in.channel,
		"user", logging.RedactID(in.userID),
		"error", err,
	)
	return degrade(StageHistoryAppend, ReasonStoreUnavailable, err)
}

func summarize(err error) string {
	msg := []rune(err.Error())
	if len(msg) > diagnosticsMaxRune {
		msg = append(msg[:diagnosticsMaxRune], '…')
	}
	return string(msg)
}
