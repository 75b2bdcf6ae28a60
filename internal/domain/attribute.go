package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AttributeKind distinguishes the two per-user catalogs a recipe links to.
type AttributeKind string

const (
	// KindTag is a free-form label such as "Vegan".
	KindTag AttributeKind = "tag"

	// KindIngredient is an ingredient such as "Salt".
	KindIngredient AttributeKind = "ingredient"
)

// Valid reports whether k is a known kind.
func (k AttributeKind) Valid() bool {
	return k == KindTag || k == KindIngredient
}

// Plural returns the collection name, used for tables and routes.
func (k AttributeKind) Plural() string {
	switch k {
	case KindTag:
		return "tags"
	case KindIngredient:
		return "ingredients"
	default:
		return string(k) + "s"
	}
}

// Attribute is a named tag or ingredient owned by one user.
type Attribute struct {
	ID     int64         `json:"id"`
	UserID int64         `json:"-"`
	Name   string        `json:"name"`
	Kind   AttributeKind `json:"-"`
}

// NewAttribute validates name and returns an attribute owned by userID.
// A nil name means the field was missing from the request.
func NewAttribute(kind AttributeKind, userID int64, name *string) (*Attribute, error) {
	if name == nil {
		return nil, NewValidationError("name", MsgRequired)
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil, NewValidationError("name", MsgBlank)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return nil, NewValidationError("name", fmt.Sprintf(MsgMaxLength, MaxNameLength))
	}
	return &Attribute{
		UserID: userID,
		Name:   trimmed,
		Kind:   kind,
	}, nil
}

// AttributeIDs returns the IDs of attrs in order.
func AttributeIDs(attrs []Attribute) []int64 {
	ids := make([]int64, 0, len(attrs))
	for _, a := range attrs {
		ids = append(ids, a.ID)
	}
	return ids
}
