package dialogue

import (
	"strconv"
	"strings"

	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
)

const placeholder = "-"

// DoctorView is the prompt-facing projection of a doctor.
type DoctorView struct {
	Name      string
	Specialty string
	Branch    string
}

type ServiceView struct {
	Name        string
	Price       string
	Description string
}

type BranchView struct {
	Name    string
	City    string
	Address string
	Phone   string
	Hours   string
}

type OfferView struct {
	Title       string
	Discount    string
	Description string
}

type column struct {
	width    int
	ellipsis bool
}

var (
	doctorColumns  = []column{{25, false}, {20, false}, {15, false}}
	serviceColumns = []column{{20, false}, {15, false}, {35, true}}
	branchColumns  = []column{{15, false}, {15, false}, {25, true}, {15, false}, {15, false}}
	offerColumns   = []column{{30, false}, {15, false}, {40, true}}
)

// Formatter renders catalog subsets as fixed-width text tables for the model
// prompt. It is pure: the same input always yields the same output.
type Formatter struct {
	locale   Locale
	currency string
}

func NewFormatter(locale Locale, currency string) *Formatter {
	return &Formatter{locale: locale, currency: strings.TrimSpace(currency)}
}

// Format renders every non-empty section, separated by a blank line.
func (f *Formatter) Format(ctx CatalogContext) string {
	sections := make([]string, 0, 4)
	if len(ctx.Doctors) > 0 {
		sections = append(sections, f.FormatDoctors(f.DoctorViews(ctx.Doctors)))
	}
	if len(ctx.Services) > 0 {
		sections = append(sections, f.FormatServices(f.ServiceViews(ctx.Services)))
	}
	if len(ctx.Branches) > 0 {
		sections = append(sections, f.FormatBranches(f.BranchViews(ctx.Branches)))
	}
	if len(ctx.Offers) > 0 {
		sections = append(sections, f.FormatOffers(f.OfferViews(ctx.Offers)))
	}
	return strings.Join(sections, "\n\n")
}

func (f *Formatter) DoctorViews(doctors []catalog.Doctor) []DoctorView {
	views := make([]DoctorView, 0, len(doctors))
	for _, d := range doctors {
		branch := ""
		if d.BranchID != nil {
			branch = d.BranchName
		}
		views = append(views, DoctorView{
			Name:      d.Name,
			Specialty: orDefault(d.Specialty, f.locale.DefaultSpecialty),
			Branch:    branch,
		})
	}
	return views
}

func (f *Formatter) ServiceViews(services []catalog.Service) []ServiceView {
	views := make([]ServiceView, 0, len(services))
	for _, s := range services {
		price := ""
		if s.BasePrice != nil && *s.BasePrice != 0 {
			price = f.money(*s.BasePrice)
		}
		views = append(views, ServiceView{Name: s.Name, Price: price, Description: s.Description})
	}
	return views
}

func (f *Formatter) BranchViews(branches []catalog.Branch) []BranchView {
	views := make([]BranchView, 0, len(branches))
	for _, b := range branches {
		views = append(views, BranchView{
			Name:    b.Name,
			City:    b.City,
			Address: b.Address,
			Phone:   b.Phone,
			Hours:   b.WorkingHours.String(),
		})
	}
	return views
}

func (f *Formatter) OfferViews(offers []catalog.Offer) []OfferView {
	views := make([]OfferView, 0, len(offers))
	for _, o := range offers {
		discount := ""
		if o.DiscountValue != nil && *o.DiscountValue != 0 {
			switch o.DiscountType {
			case catalog.DiscountPercentage:
				discount = formatNumber(*o.DiscountValue) + "%"
			case catalog.DiscountFixed:
				discount = f.money(*o.DiscountValue)
			}
		}
		views = append(views, OfferView{Title: o.Title, Discount: discount, Description: o.Description})
	}
	return views
}

func (f *Formatter) FormatDoctors(views []DoctorView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Name, v.Specialty, v.Branch})
	}
	return renderTable(f.locale.DoctorsTitle, 80, doctorColumns, f.locale.DoctorHeaders[:], rows)
}

func (f *Formatter) FormatServices(views []ServiceView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Name, v.Price, v.Description})
	}
	return renderTable(f.locale.ServicesTitle, 90, serviceColumns, f.locale.ServiceHeaders[:], rows)
}

func (f *Formatter) FormatBranches(views []BranchView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Name, v.City, v.Address, v.Phone, v.Hours})
	}
	return renderTable(f.locale.BranchesTitle, 120, branchColumns, f.locale.BranchHeaders[:], rows)
}

func (f *Formatter) FormatOffers(views []OfferView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Title, v.Discount, v.Description})
	}
	return renderTable(f.locale.OffersTitle, 100, offerColumns, f.locale.OfferHeaders[:], rows)
}

func (f *Formatter) money(v float64) string {
	if f.currency == "" {
		return formatNumber(v)
	}
	return formatNumber(v) + " " + f.currency
}

func renderTable(title string, ruleWidth int, cols []column, headers []string, rows [][]string) string {
	rule := strings.Repeat("─", ruleWidth)
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(renderRow(cols, headers))
	b.WriteString("\n")
	b.WriteString(rule)
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(renderRow(cols, row))
	}
	b.WriteString("\n")
	b.WriteString(rule)
	return b.String()
}

func renderRow(cols []column, cells []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = pad(fit(cell, col), col.width)
	}
	return "│ " + strings.Join(parts, " │ ") + " │"
}

// fit flattens newlines, substitutes the placeholder for empty values and
// truncates to the column width, counting runes.
func fit(value string, col column) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return placeholder
	}
	runes := []rune(value)
	if len(runes) <= col.width {
		return value
	}
	if col.ellipsis && col.width > 3 {
		return string(runes[:col.width-3]) + "..."
	}
	return string(runes[:col.width])
}

func pad(value string, width int) string {
	n := len([]rune(value))
	if n >= width {
		return value
	}
	return value + strings.Repeat(" ", width-n)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
