package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

// Doctor is an active or inactive practitioner. BranchID may reference a
// branch that no longer exists; BranchName is empty in that case.
type Doctor struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Specialty  string  `json:"specialty,omitempty"`
	BranchID   *string `json:"branch_id,omitempty"`
	BranchName string  `json:"branch_name,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	IsActive   bool    `json:"is_active"`
}

// Service is a bookable clinic service.
type Service struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	BasePrice   *float64 `json:"base_price,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// Branch is a clinic location.
type Branch struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	City         string       `json:"city,omitempty"`
	Address      string       `json:"address,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	WorkingHours WorkingHours `json:"working_hours,omitzero"`
	IsActive     bool         `json:"is_active"`
}

// Discount types stored on offers.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Offer is a promotion, optionally tied to a service.
type Offer struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	DiscountType  string     `json:"discount_type,omitempty"`
	DiscountValue *float64   `json:"discount_value,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	ServiceID     *string    `json:"service_id,omitempty"`
	IsActive      bool       `json:"is_active"`
}

// ValidAt reports whether the offer is active and inside its date range.
func (o Offer) ValidAt(t time.Time) bool {
	if !o.IsActive {
		return false
	}
	if o.StartDate != nil && t.Before(*o.StartDate) {
		return false
	}
	if o.EndDate != nil && t.After(*o.EndDate) {
		return false
	}
	return true
}

// WorkingHours is stored either as {"from": "...", "to": "..."} or as a
// free-form string.
type WorkingHours struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Text string `json:"-"`
}

// String renders "from - to", the free-form text, or "" when unknown.
func (w WorkingHours) String() string {
	if w.From != "" && w.To != "" {
		return w.From + " - " + w.To
	}
	return w.Text
}

// IsZero lets encoding/json omit empty hours under omitzero.
func (w WorkingHours) IsZero() bool {
	return w.From == "" && w.To == "" && w.Text == ""
}

func (w *WorkingHours) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*w = WorkingHours{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*w = WorkingHours{Text: text}
		return nil
	}
	var obj struct {
		From any `json:"from"`
		To   any `json:"to"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*w = WorkingHours{From: scalarString(obj.From), To: scalarString(obj.To)}
	return nil
}

func (w WorkingHours) MarshalJSON() ([]byte, error) {
	if w.From == "" && w.To == "" {
		if w.Text == "" {
			return []byte("null"), nil
		}
		return json.Marshal(w.Text)
	}
	return json.Marshal(map[string]string{"from": w.From, "to": w.To})
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
