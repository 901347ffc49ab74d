package dialogue

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
)

func TestFormatter_EmptyContextRendersNothing(t *testing.T) {
	f := NewFormatter(LocaleFor("en"), "SAR")
	assert.Equal(t, "", f.Format(CatalogContext{}))
}

func TestFormatter_RendersSectionsInOrder(t *testing.T) {
	snap := seededCatalog()
	snap.Doctors[0].BranchName = "Olaya Branch"
	f := NewFormatter(LocaleFor("en"), "SAR")

	out := f.Format(CatalogContext{
		Doctors:  snap.Doctors,
		Services: snap.Services,
		Branches: snap.Branches,
		Offers:   snap.Offers,
	})

	doctors := strings.Index(out, "=== Doctors ===")
	services := strings.Index(out, "=== Services ===")
	branches := strings.Index(out, "=== Branches ===")
	offers := strings.Index(out, "=== Offers ===")
	require.True(t, doctors == 0 && services > doctors && branches > services && offers > branches, out)

	assert.Contains(t, out, "150 SAR")
	assert.Contains(t, out, "20%")
	assert.Contains(t, out, "09:00 - 21:00")
	assert.Contains(t, out, "Olaya Branch")
	assert.Contains(t, out, "General practice", "missing specialty falls back to the default")
	assert.Contains(t, out, "\n\n=== Services ===")
}

func TestFormatter_NullFieldsBecomePlaceholders(t *testing.T) {
	f := NewFormatter(LocaleFor("en"), "")

	out := f.FormatServices(f.ServiceViews([]catalog.Service{{ID: "s", Name: "Consultation"}}))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "│ "+pad("Consultation", 20)+" │ "+pad("-", 15)+" │ "+pad("-", 35)+" │", lines[4])
}

func TestFormatter_DoctorWithDanglingBranch(t *testing.T) {
	f := NewFormatter(LocaleFor("en"), "")
	views := f.DoctorViews([]catalog.Doctor{{Name: "Dr. Lina", BranchID: strPtr("gone")}})
	require.Len(t, views, 1)
	assert.Equal(t, "", views[0].Branch)
	assert.True(t, strings.HasSuffix(f.FormatDoctors(views), "│ "+pad("-", 15)+" │\n"+strings.Repeat("─", 80)))
}

func TestFormatter_TruncatesByRunes(t *testing.T) {
	f := NewFormatter(LocaleFor("ar"), "ريال")
	long := strings.Repeat("تنظيف الأسنان بعناية ", 5)

	out := f.FormatServices(f.ServiceViews([]catalog.Service{{Name: long, Description: long, BasePrice: floatPtr(99.5)}}))
	row := strings.Split(out, "\n")[4]
	cells := strings.Split(strings.Trim(row, "│"), "│")
	require.Len(t, cells, 3)

	name := strings.TrimSpace(cells[0])
	desc := strings.TrimSpace(cells[2])
	assert.Equal(t, 20, utf8.RuneCountInString(name))
	assert.Equal(t, 35, utf8.RuneCountInString(desc))
	assert.True(t, strings.HasSuffix(desc, "..."))
	assert.Equal(t, "99.5 ريال", strings.TrimSpace(cells[1]))
}

func TestFormatter_SeparatorWidths(t *testing.T) {
	f := NewFormatter(LocaleFor("en"), "")
	snap := seededCatalog()

	tests := []struct {
		name  string
		out   string
		width int
	}{
		{"doctors", f.FormatDoctors(f.DoctorViews(snap.Doctors)), 80},
		{"services", f.FormatServices(f.ServiceViews(snap.Services)), 90},
		{"branches", f.FormatBranches(f.BranchViews(snap.Branches)), 120},
		{"offers", f.FormatOffers(f.OfferViews(snap.Offers)), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := strings.Split(tt.out, "\n")[1]
			assert.Equal(t, tt.width, utf8.RuneCountInString(rule))
		})
	}
}

func TestFormatter_OfferDiscounts(t *testing.T) {
	f := NewFormatter(LocaleFor("en"), "SAR")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	views := f.OfferViews([]catalog.Offer{
		{Title: "pct", DiscountType: catalog.DiscountPercentage, DiscountValue: floatPtr(15)},
		{Title: "fixed", DiscountType: catalog.DiscountFixed, DiscountValue: floatPtr(100), StartDate: timePtr(start)},
		{Title: "zero", DiscountType: catalog.DiscountFixed, DiscountValue: floatPtr(0)},
		{Title: "unknown", DiscountType: "bogo", DiscountValue: floatPtr(1)},
		{Title: "null"},
	})

	got := make([]string, 0, len(views))
	for _, v := range views {
		got = append(got, v.Discount)
	}
	assert.Equal(t, []string{"15%", "100 SAR", "", "", ""}, got)
}

func TestFormatter_TotalOverSparseCombinations(t *testing.T) {
	f := NewFormatter(LocaleFor("en"), "SAR")
	sparse := CatalogContext{
		Doctors:  []catalog.Doctor{{}},
		Services: []catalog.Service{{}},
		Branches: []catalog.Branch{{}},
		Offers:   []catalog.Offer{{}},
	}

	for mask := 0; mask < 16; mask++ {
		var ctx CatalogContext
		if mask&1 != 0 {
			ctx.Doctors = sparse.Doctors
		}
		if mask&2 != 0 {
			ctx.Services = sparse.Services
		}
		if mask&4 != 0 {
			ctx.Branches = sparse.Branches
		}
		if mask&8 != 0 {
			ctx.Offers = sparse.Offers
		}
		assert.NotPanics(t, func() {
			out := f.Format(ctx)
			assert.Equal(t, mask == 0, out == "")
		})
	}
}
