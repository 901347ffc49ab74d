package dialogue

import "strings"

// Locale holds every user-facing and prompt-facing string the dialogue layer
// produces.
type Locale struct {
	Code string

	FieldName    string
	FieldPhone   string
	FieldService string
	FieldBranch  string
	ListJoiner   string

	MissingFields string // %s is the joined field list

	ConfirmHeader  string
	ConfirmDate    string
	ConfirmBranch  string
	ConfirmService string
	ConfirmDoctor  string
	ConfirmFollow  string // %s is the phone
	ConfirmThanks  string
	NotSpecified   string

	BookingFailed string
	Apology       string
	Diagnostics   string // %s is the error summary

	DoctorsTitle     string
	ServicesTitle    string
	BranchesTitle    string
	OffersTitle      string
	DoctorHeaders    [3]string
	ServiceHeaders   [3]string
	BranchHeaders    [5]string
	OfferHeaders     [3]string
	DefaultSpecialty string
}

var englishLocale = Locale{
	Code:         "en",
	FieldName:    "name",
	FieldPhone:   "phone number",
	FieldService: "service",
	FieldBranch:  "branch",
	ListJoiner:   ", ",

	MissingFields: "To book your appointment I still need: %s. Could you share them?",

	ConfirmHeader:  "✅ Your appointment is booked!",
	ConfirmDate:    "📅 Date: ",
	ConfirmBranch:  "🏥 Branch: ",
	ConfirmService: "🩺 Service: ",
	ConfirmDoctor:  "👨‍⚕️ Doctor: ",
	ConfirmFollow:  "📞 We will contact you on %s to confirm.",
	ConfirmThanks:  "Thank you for choosing us! 😊",
	NotSpecified:   "not specified",

	BookingFailed: "Sorry, something went wrong while booking your appointment. Would you like me to connect you with our reception team?",
	Apology:       "Sorry, I couldn't process your message right now. Would you like me to connect you with our reception team?",
	Diagnostics:   " [debug: %s]",

	DoctorsTitle:     "=== Doctors ===",
	ServicesTitle:    "=== Services ===",
	BranchesTitle:    "=== Branches ===",
	OffersTitle:      "=== Offers ===",
	DoctorHeaders:    [3]string{"Name", "Specialty", "Branch"},
	ServiceHeaders:   [3]string{"Name", "Price", "Description"},
	BranchHeaders:    [5]string{"Name", "City", "Address", "Phone", "Hours"},
	OfferHeaders:     [3]string{"Title", "Discount", "Description"},
	DefaultSpecialty: "General practice",
}

var arabicLocale = Locale{
	Code:         "ar",
	FieldName:    "الاسم",
	FieldPhone:   "رقم الهاتف",
	FieldService: "الخدمة",
	FieldBranch:  "الفرع",
	ListJoiner:   "، ",

	MissingFields: "عشان أحجز لك موعد، أحتاج: %s. ممكن تعطيني هالمعلومات؟",

	ConfirmHeader:  "✅ تم حجز موعدك بنجاح!",
	ConfirmDate:    "📅 التاريخ: ",
	ConfirmBranch:  "🏥 الفرع: ",
	ConfirmService: "🩺 الخدمة: ",
	ConfirmDoctor:  "👨‍⚕️ الطبيب: ",
	ConfirmFollow:  "📞 سنتواصل معك على %s لتأكيد الموعد",
	ConfirmThanks:  "شكراً لثقتك فينا! 😊",
	NotSpecified:   "غير محدد",

	BookingFailed: "عذراً، حدث خطأ في حجز الموعد. تبي أحوّلك للاستقبال يساعدونك؟",
	Apology:       "عذراً، ما قدرت أعالج رسالتك الحين. تبي أحوّلك للاستقبال يساعدونك؟",
	Diagnostics:   " [تفاصيل: %s]",

	DoctorsTitle:     "=== الأطباء ===",
	ServicesTitle:    "=== الخدمات ===",
	BranchesTitle:    "=== الفروع ===",
	OffersTitle:      "=== العروض ===",
	DoctorHeaders:    [3]string{"الاسم", "التخصص", "الفرع"},
	ServiceHeaders:   [3]string{"الاسم", "السعر", "الوصف"},
	BranchHeaders:    [5]string{"الاسم", "المدينة", "العنوان", "الهاتف", "ساعات العمل"},
	OfferHeaders:     [3]string{"العنوان", "الخصم", "الوصف"},
	DefaultSpecialty: "اختصاص عام",
}

// LocaleFor returns the locale for a language code, defaulting to English.
func LocaleFor(code string) Locale {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "ar", "ar-sa", "arabic":
		return arabicLocale
	default:
		return englishLocale
	}
}
