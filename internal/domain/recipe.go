package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Price precision limits.
const (
	PriceMaxDigits     = 5
	PriceDecimalPlaces = 2
)

// UpdateMode selects how omitted fields are treated when a recipe is written.
type UpdateMode int

const (
	// UpdatePartial leaves omitted fields untouched.
	UpdatePartial UpdateMode = iota

	// UpdateFull requires every required field and resets omitted optional
	// fields, including the tag and ingredient sets, to empty.
	UpdateFull
)

// String implements fmt.Stringer.
func (m UpdateMode) String() string {
	if m == UpdateFull {
		return "full"
	}
	return "partial"
}

// Recipe is a user's recipe with its linked tags and ingredients.
type Recipe struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"-"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       decimal.Decimal `json:"price"`
	Link        string          `json:"link"`

	// Image is the storage key of the attached image; empty means none.
	Image string `json:"-"`

	Tags        []Attribute `json:"tags"`
	Ingredients []Attribute `json:"ingredients"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// HasImage reports whether an image is attached.
func (r *Recipe) HasImage() bool {
	return r.Image != ""
}

// TagIDs returns the IDs of the linked tags.
func (r *Recipe) TagIDs() []int64 {
	return AttributeIDs(r.Tags)
}

// IngredientIDs returns the IDs of the linked ingredients.
func (r *Recipe) IngredientIDs() []int64 {
	return AttributeIDs(r.Ingredients)
}

// RecipeInput carries recipe fields from a request. A nil field was omitted.
type RecipeInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *decimal.Decimal
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}

// Validate checks field values, and in Full mode that required fields are present.
// Creation uses Full mode.
func (in RecipeInput) Validate(mode UpdateMode) error {
	verr := &ValidationError{}

	if in.Title == nil {
		if mode == UpdateFull {
			verr.Add("title", MsgRequired)
		}
	} else {
		title := strings.TrimSpace(*in.Title)
		switch {
		case title == "":
			verr.Add("title", MsgBlank)
		case utf8.RuneCountInString(title) > MaxNameLength:
			verr.Add("title", fmt.Sprintf(MsgMaxLength, MaxNameLength))
		}
	}

	if in.TimeMinutes == nil {
		if mode == UpdateFull {
			verr.Add("time_minutes", MsgRequired)
		}
	} else if *in.TimeMinutes < 0 {
		verr.Add("time_minutes", fmt.Sprintf(MsgMinValue, 0))
	}

	if in.Price == nil {
		if mode == UpdateFull {
			verr.Add("price", MsgRequired)
		}
	} else if msg := ValidatePrice(*in.Price); msg != "" {
		verr.Add("price", msg)
	}

	if in.Link != nil && utf8.RuneCountInString(strings.TrimSpace(*in.Link)) > MaxNameLength {
		verr.Add("link", fmt.Sprintf(MsgMaxLength, MaxNameLength))
	}

	return verr.ErrOrNil()
}

// ApplyTo copies the scalar fields of in onto r according to mode.
// Tag and ingredient sets are resolved by the caller.
func (in RecipeInput) ApplyTo(r *Recipe, mode UpdateMode) {
	if in.Title != nil {
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.TimeMinutes != nil {
		r.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		r.Price = *in.Price
	}
	switch {
	case in.Link != nil:
		r.Link = strings.TrimSpace(*in.Link)
	case mode == UpdateFull:
		r.Link = ""
	}
}

// ValidatePrice returns a validation message if d does not fit the price
// column (non-negative, at most 5 digits with 2 decimal places), or "".
func ValidatePrice(d decimal.Decimal) string {
	if d.IsNegative() {
		return fmt.Sprintf(MsgMinValue, 0)
	}

	coefficient := d.Coefficient().String()
	if coefficient == "0" {
		coefficient = ""
	}
	exp := int(d.Exponent())

	var digits, decimals int
	switch {
	case exp >= 0:
		digits = len(coefficient) + exp
	case -exp > len(coefficient):
		digits = -exp
		decimals = -exp
	default:
		digits = len(coefficient)
		decimals = -exp
	}
	whole := digits - decimals

	switch {
	case digits > PriceMaxDigits:
		return fmt.Sprintf(MsgMaxDigits, PriceMaxDigits)
	case decimals > PriceDecimalPlaces:
		return fmt.Sprintf(MsgMaxDecimals, PriceDecimalPlaces)
	case whole > PriceMaxDigits-PriceDecimalPlaces:
		return fmt.Sprintf(MsgMaxWhole, PriceMaxDigits-PriceDecimalPlaces)
	}
	return ""
}

// RecipeFilter narrows a recipe listing. Within a list IDs are ORed;
// the two lists are ANDed when both are set.
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

// IsEmpty reports whether the filter matches every recipe.
func (f RecipeFilter) IsEmpty() bool {
	return len(f.TagIDs) == 0 && len(f.IngredientIDs) == 0
}
