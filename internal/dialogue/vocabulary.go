package dialogue

import (
	"regexp"
	"strings"
)

// Vocabulary is the keyword and pattern data that drives classification and
// slot extraction. Constructors copy it, so callers may not mutate a running
// classifier through a shared Vocabulary.
type Vocabulary struct {
	DoctorTerms  []string
	ServiceTerms []string
	BranchTerms  []string
	OfferTerms   []string
	BookingTerms []string

	// ServiceKeywords must appear in both the user text and a service name
	// for the service to count as mentioned.
	ServiceKeywords []string
	// Honorifics are stripped from doctor names and needles before matching.
	Honorifics []string

	// NamePatterns are tried in order; capture group 1 is the name, or the
	// whole match when the pattern has several groups.
	NamePatterns []*regexp.Regexp
	// PhonePatterns are tried in order; the whole match is the phone.
	PhonePatterns []*regexp.Regexp

	TomorrowTerms         []string
	DayAfterTomorrowTerms []string
}

// DefaultVocabulary covers English and Gulf Arabic.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		DoctorTerms: []string{
			"doctor", "dr.", "dr ", "dentist", "physician", "specialist", "specialty",
			"دكتور", "طبيب", "الاطباء", "اطباء", "الأطباء", "أطباء", "تخصص",
		},
		ServiceTerms: []string{
			"service", "consultation", "checkup", "check-up", "treatment", "vaccin",
			"price", "cost", "how much",
			"خدم", "خدمات", "استشارة", "فحص", "علاج", "تطعيم", "بكم", "كم يكلف", "سعر", "تكلفة",
		},
		BranchTerms: []string{
			"branch", "location", "address", "where are you", "where is", "hours", "open", "close",
			"contact", "phone", "call you",
			"فرع", "فروع", "عنوان", "موقع", "وينكم", "وين", "ساعات العمل", "ساعات", "وقت العمل",
			"متى تفتحون", "متى تغلقون", "رقم", "هاتف", "تواصل", "اتصال",
		},
		OfferTerms: []string{
			"offer", "deal", "discount", "promo",
			"عرض", "عروض", "خصم",
		},
		BookingTerms: []string{
			"book", "appointment", "reserve", "reservation", "schedule", "tomorrow", "time slot",
			"احجز", "حجز", "أحجز", "موعد", "بكرا", "بكرة", "غداً", "غدا", "بعد غد", "تاريخ", "وقت",
		},
		ServiceKeywords: []string{
			"whitening", "cleaning", "braces", "orthodontic", "filling", "checkup", "implant",
			"extraction", "root canal", "veneer",
			"تبييض", "تنظيف", "تقويم", "حشو", "فحص", "زراعة", "خلع",
		},
		Honorifics: []string{"dr.", "dr ", "doctor ", "د.", "الدكتور", "دكتور"},
		NamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy name is[ \t]+(\p{L}+(?:[ \t]+\p{L}+)?)`),
			regexp.MustCompile(`اسمي[ \t]+(\p{L}+(?:[ \t]+\p{L}+)?)`),
			regexp.MustCompile(`(?i)\bI am[ \t]+(\p{L}+)`),
			regexp.MustCompile(`(?:^|[ \t])أنا[ \t]+(\p{L}+)`),
			regexp.MustCompile(`(\p{L}+)[ \t]+(\p{L}+)`),
		},
		// The mobile form goes first so +9665XXXXXXXX is not cut to ten digits.
		PhonePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:\+?966|0)5\d{8}`),
			regexp.MustCompile(`\d{10}`),
			regexp.MustCompile(`\d{9}`),
		},
		TomorrowTerms:         []string{"tomorrow", "بكرا", "بكرة", "غداً", "غدا"},
		DayAfterTomorrowTerms: []string{"day after tomorrow", "بعد بكرا", "بعد بكرة", "بعد غد"},
	}
}

func (v Vocabulary) clone() Vocabulary {
	cp := func(s []string) []string { return append([]string(nil), s...) }
	return Vocabulary{
		DoctorTerms:           cp(v.DoctorTerms),
		ServiceTerms:          cp(v.ServiceTerms),
		BranchTerms:           cp(v.BranchTerms),
		OfferTerms:            cp(v.OfferTerms),
		BookingTerms:          cp(v.BookingTerms),
		ServiceKeywords:       cp(v.ServiceKeywords),
		Honorifics:            cp(v.Honorifics),
		NamePatterns:          append([]*regexp.Regexp(nil), v.NamePatterns...),
		PhonePatterns:         append([]*regexp.Regexp(nil), v.PhonePatterns...),
		TomorrowTerms:         cp(v.TomorrowTerms),
		DayAfterTomorrowTerms: cp(v.DayAfterTomorrowTerms),
	}
}

// containsAny reports whether text contains one of terms. A term that starts
// with an ASCII letter must also start a word, so "book" does not fire inside
// "facebook". Arabic terms match anywhere because prefixes such as و and ب
// attach to the word.
func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if term != "" && containsTerm(text, term) {
			return true
		}
	}
	return false
}

func containsTerm(text, term string) bool {
	if !isASCIIWordByte(term[0]) {
		return strings.Contains(text, term)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		i += from
		if i == 0 || !isASCIIWordByte(text[i-1]) {
			return true
		}
		from = i + 1
	}
	return false
}

func isASCIIWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

// stripHonorifics lower-cases s and removes honorific prefixes anywhere in it.
func (v Vocabulary) stripHonorifics(s string) string {
	s = strings.ToLower(s)
	for _, h := range v.Honorifics {
		s = strings.ReplaceAll(s, strings.ToLower(h), " ")
	}
	return strings.Join(strings.Fields(s), " ")
}

var arabicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// normalizeDigits maps Arabic-Indic digits to ASCII so digit patterns match.
func normalizeDigits(s string) string {
	return arabicDigits.Replace(s)
}
