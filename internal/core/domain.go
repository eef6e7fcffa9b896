package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

// Default chart colors for categories without an explicit color.
const (
	DefaultExpenseColor = "#6B7280"
	DefaultIncomeColor  = "#10B981"
)

type (
	// CategoryType tags a category as income or expense. The type of the
	// linked category, not the sign of the amount, decides how a
	// transaction is aggregated.
	CategoryType string

	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Category struct {
		ID    int64        `json:"id"`
		Name  string       `json:"name"`
		Type  CategoryType `json:"type"`
		Icon  string       `json:"icon,omitempty"`
		Color string       `json:"color,omitempty"`
	}

	Transaction struct {
		ID          int64     `json:"id"`
		Amount      Money     `json:"amount"`
		Date        Date      `json:"date"`
		Description string    `json:"description,omitempty"`
		UserID      int64     `json:"user_id"`
		CategoryID  int64     `json:"category_id"`
		Category    Category  `json:"category"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// TransactionFilter narrows a user's transaction listing. Nil/empty
	// fields leave the corresponding dimension unfiltered. Date bounds
	// are inclusive.
	TransactionFilter struct {
		StartDate  *Date
		EndDate    *Date
		CategoryID *int64
		Type       CategoryType
	}

	// TransactionPatch is an explicit optional-field patch: only non-nil
	// fields are applied on update.
	TransactionPatch struct {
		Amount      *Money
		Date        *Date
		Description *string
		CategoryID  *int64
	}

	// Summary holds the dashboard totals for one user.
	Summary struct {
		TotalIncome   Money `json:"total_income"`
		TotalExpenses Money `json:"total_expenses"`
		Balance       Money `json:"balance"`
	}

	// CategoryAmount is one chart row: a category with its summed amount.
	CategoryAmount struct {
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
		Color    string `json:"color"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidType     = errors.New("invalid category type")
	ErrMissingCategory = errors.New("category is required")
)

const maxDescriptionLen = 255

// ParseCategoryType validates and normalizes a category type string.
func ParseCategoryType(s string) (CategoryType, error) {
	switch CategoryType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FieldError carries field-level validation detail for API responses.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the writable fields of a transaction. It returns a
// FieldError so callers can surface which field was rejected.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return FieldError{Field: "amount", Message: "must be a positive decimal"}
	}
	if err := t.Date.Validate(); err != nil {
		return FieldError{Field: "date", Message: "must be a valid YYYY-MM-DD date"}
	}
	if len(t.Description) > maxDescriptionLen {
		return FieldError{Field: "description", Message: "too long (max 255 characters)"}
	}
	if t.CategoryID <= 0 {
		return FieldError{Field: "category_id", Message: "is required"}
	}
	return nil
}

// Validate checks the fields touched by a patch. Nil fields are skipped.
func (p TransactionPatch) Validate() error {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return FieldError{Field: "amount", Message: "must be a positive decimal"}
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return FieldError{Field: "date", Message: "must be a valid YYYY-MM-DD date"}
		}
	}
	if p.Description != nil && len(*p.Description) > maxDescriptionLen {
		return FieldError{Field: "description", Message: "too long (max 255 characters)"}
	}
	if p.CategoryID != nil && *p.CategoryID <= 0 {
		return FieldError{Field: "category_id", Message: "must be a positive id"}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Amount == nil && p.Date == nil && p.Description == nil && p.CategoryID == nil
}

// ChartColor returns the category's display color, falling back to the
// default for its type when none is set.
func (c Category) ChartColor() string {
	if c.Color != "" {
		return c.Color
	}
	if c.Type == Income {
		return DefaultIncomeColor
	}
	return DefaultExpenseColor
}
