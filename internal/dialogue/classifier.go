package dialogue

import (
	"strings"

	"github.com/FLANsa/clinic-ai-bot/internal/history"
)

const classifierWindow = 3

// Intent says which catalog sections a reply needs and whether the user is
// trying to book.
type Intent struct {
	NeedDoctors  bool
	NeedServices bool
	NeedBranches bool
	NeedOffers   bool
	WantsBooking bool
}

// Classifier is a stateless keyword router.
type Classifier struct {
	vocab Vocabulary
}

func NewClassifier(vocab Vocabulary) *Classifier {
	return &Classifier{vocab: vocab.clone()}
}

// Classify inspects the message joined with the last three inbound turns.
// Section needs are independent of each other. Booking looks at the current
// message only, so a finished booking does not re-trigger on the follow-up
// turns that still carry the old keyword.
func (c *Classifier) Classify(message string, window history.Window) Intent {
	current := strings.ToLower(message)
	parts := append([]string{current}, window.Last(classifierWindow).InboundTexts()...)
	combined := strings.ToLower(strings.Join(parts, " "))

	intent := Intent{
		NeedDoctors:  containsAny(combined, c.vocab.DoctorTerms),
		NeedServices: containsAny(combined, c.vocab.ServiceTerms),
		NeedBranches: containsAny(combined, c.vocab.BranchTerms),
		NeedOffers:   containsAny(combined, c.vocab.OfferTerms),
		WantsBooking: containsAny(current, c.vocab.BookingTerms),
	}

	switch {
	case intent.WantsBooking:
		intent.NeedDoctors, intent.NeedServices, intent.NeedBranches = true, true, true
	case !intent.NeedDoctors && !intent.NeedServices && !intent.NeedBranches && !intent.NeedOffers:
		intent.NeedDoctors, intent.NeedServices, intent.NeedBranches = true, true, true
	}
	return intent
}
