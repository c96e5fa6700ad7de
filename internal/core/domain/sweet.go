package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal amounts must fit these bounds before any arithmetic is done on
// them. Rescaling a decimal with a huge exponent allocates 10^exp.
const (
	MaxAmountExponent = 28
	MaxAmountDigits   = 34
)

// Sweet is a product in the shop inventory.
type Sweet struct {
	ID        string
	Name      string
	Category  string
	Price     decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize trims the free-text fields in place.
func (s *Sweet) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Category = strings.TrimSpace(s.Category)
}

// Validate checks every field constraint of a sweet.
func (s *Sweet) Validate() error {
	if err := validateName("name", s.Name); err != nil {
		return err
	}
	if err := validateName("category", s.Category); err != nil {
		return err
	}
	if err := validatePrice(s.Price); err != nil {
		return err
	}
	return validateQuantity(s.Quantity)
}

// SweetPatch is a partial update. Nil fields are left untouched.
type SweetPatch struct {
	Name     *string
	Category *string
	Price    *decimal.Decimal
	Quantity *int
}

// Empty reports whether the patch touches no field.
func (p SweetPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil && p.Quantity == nil
}

// Normalize trims the touched free-text fields.
func (p *SweetPatch) Normalize() {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		p.Name = &v
	}
	if p.Category != nil {
		v := strings.TrimSpace(*p.Category)
		p.Category = &v
	}
}

// Validate applies the creation constraints to every touched field.
func (p SweetPatch) Validate() error {
	if p.Name != nil {
		if err := validateName("name", *p.Name); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := validateName("category", *p.Category); err != nil {
			return err
		}
	}
	if p.Price != nil {
		if err := validatePrice(*p.Price); err != nil {
			return err
		}
	}
	if p.Quantity != nil {
		return validateQuantity(*p.Quantity)
	}
	return nil
}

// Apply copies the touched fields onto s.
func (p SweetPatch) Apply(s *Sweet) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Quantity != nil {
		s.Quantity = *p.Quantity
	}
}

// SweetFilter narrows a listing. Zero-valued fields impose no constraint.
type SweetFilter struct {
	Name     string
	Category string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
}

// Matches reports whether s satisfies every set constraint of f.
// Text filters are case-insensitive substring matches; the price range is
// inclusive.
func (f SweetFilter) Matches(s *Sweet) bool {
	if f.Name != "" && !containsFold(s.Name, f.Name) {
		return false
	}
	if f.Category != "" && !containsFold(s.Category, f.Category) {
		return false
	}
	if f.PriceMin != nil && s.Price.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && s.Price.GreaterThan(*f.PriceMax) {
		return false
	}
	return true
}

// Validate rejects price bounds outside the accepted amount range.
func (f SweetFilter) Validate() error {
	if f.PriceMin != nil {
		if err := ValidateAmount("priceMin", *f.PriceMin); err != nil {
			return err
		}
	}
	if f.PriceMax != nil {
		return ValidateAmount("priceMax", *f.PriceMax)
	}
	return nil
}

// ValidateAmount checks the exponent and precision of d. It only reads the
// decimal's representation, so it is safe on untrusted input.
func ValidateAmount(field string, d decimal.Decimal) error {
	exp := d.Exponent()
	if exp < -MaxAmountExponent || exp > MaxAmountExponent || d.NumDigits() > MaxAmountDigits {
		return fmt.Errorf("%w: %s is out of range", ErrValidation, field)
	}
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func validateName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}

func validatePrice(p decimal.Decimal) error {
	if err := ValidateAmount("price", p); err != nil {
		return err
	}
	if p.IsNegative() {
		return fmt.Errorf("%w: price must be at least 0", ErrValidation)
	}
	return nil
}

func validateQuantity(q int) error {
	if q < 0 {
		return fmt.Errorf("%w: quantity must be at least 0", ErrValidation)
	}
	return nil
}
