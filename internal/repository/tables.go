package repository

import (
	"fmt"

	"github.com/prn-tf/pantry/internal/domain"
)

// AttributeTables names the tables backing one attribute kind.
type AttributeTables struct {
	// Table holds the attributes themselves.
	Table string

	// LinkTable joins recipes to attributes.
	LinkTable string

	// LinkColumn is the attribute column of LinkTable.
	LinkColumn string
}

// TablesFor returns the table names for kind.
func TablesFor(kind domain.AttributeKind) (AttributeTables, error) {
	if !kind.Valid() {
		return AttributeTables{}, fmt.Errorf("unknown attribute kind %q", kind)
	}
	return AttributeTables{
		Table:      kind.Plural(),
		LinkTable:  "recipe_" + kind.Plural(),
		LinkColumn: string(kind) + "_id",
	}, nil
}

// MustTablesFor is TablesFor for the built-in kinds.
func MustTablesFor(kind domain.AttributeKind) AttributeTables {
	t, err := TablesFor(kind)
	if err != nil {
		panic(err)
	}
	return t
}
