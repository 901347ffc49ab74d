package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
	"golang.org/x/sync/errgroup"
)

const (
	matchedCap = 5
	listCap    = 10
)

// CatalogReader is the persistence-side view of the reference data.
type CatalogReader interface {
	ActiveDoctors(ctx context.Context) ([]catalog.Doctor, error)
	ActiveServices(ctx context.Context) ([]catalog.Service, error)
	ActiveBranches(ctx context.Context) ([]catalog.Branch, error)
	ActiveOffers(ctx context.Context, at time.Time) ([]catalog.Offer, error)
}

// CatalogContext is the slice of reference data chosen for one prompt.
type CatalogContext struct {
	Doctors  []catalog.Doctor
	Services []catalog.Service
	Branches []catalog.Branch
	Offers   []catalog.Offer
}

// Empty reports whether no section has rows.
func (c CatalogContext) Empty() bool {
	return len(c.Doctors) == 0 && len(c.Services) == 0 && len(c.Branches) == 0 && len(c.Offers) == 0
}

// ReferenceCatalog applies the lookup caps and needle matching on top of a
// CatalogReader. Its finders never return errors: a failed read yields an
// empty list plus a Degraded value.
type ReferenceCatalog struct {
	reader CatalogReader
	vocab  Vocabulary
	now    func() time.Time
	logger *slog.Logger
}

func NewReferenceCatalog(reader CatalogReader, vocab Vocabulary, logger *slog.Logger) *ReferenceCatalog {
	if reader == nil {
		panic("dialogue: catalog reader required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReferenceCatalog{reader: reader, vocab: vocab.clone(), now: time.Now, logger: logger}
}

// FindDoctors returns the doctors named in needle (up to 5), or every active
// doctor (up to 10) when none is named.
func (c *ReferenceCatalog) FindDoctors(ctx context.Context, needle string) ([]catalog.Doctor, *Degraded) {
	all, err := c.reader.ActiveDoctors(ctx)
	if err != nil {
		return nil, c.fail("doctors", err)
	}
	text := c.vocab.stripHonorifics(needle)
	var matched []catalog.Doctor
	for _, d := range all {
		if doctorMentioned(c.vocab, d, text) {
			matched = append(matched, d)
		}
	}
	if len(matched) > 0 {
		return capped(matched, matchedCap), nil
	}
	return capped(all, listCap), nil
}

// FindServices returns services sharing a service keyword with needle (up to
// 5), or every active service (up to 10).
func (c *ReferenceCatalog) FindServices(ctx context.Context, needle string) ([]catalog.Service, *Degraded) {
	all, err := c.reader.ActiveServices(ctx)
	if err != nil {
		return nil, c.fail("services", err)
	}
	text := strings.ToLower(needle)
	var matched []catalog.Service
	for _, s := range all {
		if sharesKeyword(c.vocab.ServiceKeywords, text, strings.ToLower(s.Name)) {
			matched = append(matched, s)
		}
	}
	if len(matched) > 0 {
		return capped(matched, matchedCap), nil
	}
	return capped(all, listCap), nil
}

func (c *ReferenceCatalog) FindBranches(ctx context.Context) ([]catalog.Branch, *Degraded) {
	all, err := c.reader.ActiveBranches(ctx)
	if err != nil {
		return nil, c.fail("branches", err)
	}
	return capped(all, listCap), nil
}

func (c *ReferenceCatalog) FindOffers(ctx context.Context) ([]catalog.Offer, *Degraded) {
	now := c.now()
	all, err := c.reader.ActiveOffers(ctx, now)
	if err != nil {
		return nil, c.fail("offers", err)
	}
	valid := make([]catalog.Offer, 0, len(all))
	for _, o := range all {
		if o.ValidAt(now) {
			valid = append(valid, o)
		}
	}
	return capped(valid, listCap), nil
}

// Context loads the sections the intent asks for in parallel. Sections whose
// read failed are left empty; the first failure is returned.
func (c *ReferenceCatalog) Context(ctx context.Context, intent Intent, needle string) (CatalogContext, *Degraded) {
	var (
		out      CatalogContext
		failures [4]*Degraded
		g        errgroup.Group
	)
	if intent.NeedDoctors {
		g.Go(func() error { out.Doctors, failures[0] = c.FindDoctors(ctx, needle); return nil })
	}
	if intent.NeedServices {
		g.Go(func() error { out.Services, failures[1] = c.FindServices(ctx, needle); return nil })
	}
	if intent.NeedBranches {
		g.Go(func() error { out.Branches, failures[2] = c.FindBranches(ctx); return nil })
	}
	if intent.NeedOffers {
		g.Go(func() error { out.Offers, failures[3] = c.FindOffers(ctx); return nil })
	}
	_ = g.Wait()
	return out, firstDegraded(failures[:])
}

// Snapshot is every active doctor, service and branch, uncapped, for slot
// matching.
type Snapshot struct {
	Doctors  []catalog.Doctor
	Services []catalog.Service
	Branches []catalog.Branch
}

// Snapshot loads the booking-relevant lists in parallel.
func (c *ReferenceCatalog) Snapshot(ctx context.Context) (Snapshot, *Degraded) {
	var (
		snap     Snapshot
		failures [3]*Degraded
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		if snap.Doctors, err = c.reader.ActiveDoctors(ctx); err != nil {
			snap.Doctors, failures[0] = nil, c.fail("doctors", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Services, err = c.reader.ActiveServices(ctx); err != nil {
			snap.Services, failures[1] = nil, c.fail("services", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Branches, err = c.reader.ActiveBranches(ctx); err != nil {
			snap.Branches, failures[2] = nil, c.fail("branches", err)
		}
		return nil
	})
	_ = g.Wait()
	return snap, firstDegraded(failures[:])
}

func (c *ReferenceCatalog) fail(section string, err error) *Degraded {
	c.logger.Warn("catalog read failed", "section", section, "error", err)
	return degrade(StageCatalog, ReasonStoreUnavailable, err)
}

// doctorMentioned matches in both directions: the doctor's bare name inside
// the text ("book with dr sara khalid"), or the text inside the name ("sara").
func doctorMentioned(vocab Vocabulary, d catalog.Doctor, text string) bool {
	name := vocab.stripHonorifics(d.Name)
	if name == "" || text == "" {
		return false
	}
	return strings.Contains(text, name) || strings.Contains(name, text)
}

func sharesKeyword(keywords []string, a, b string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(a, kw) && strings.Contains(b, kw) {
			return true
		}
	}
	return false
}

func capped[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func firstDegraded(ds []*Degraded) *Degraded {
	for _, d := range ds {
		if d != nil {
			return d
		}
	}
	return nil
}
