package repository

import "github.com/prn-tf/pantry/internal/domain"

// Scope restricts a query to the rows owned by one user.
// Every tag, ingredient and recipe query takes a Scope; backends render it
// into their WHERE clause with SQL so the owner predicate lives in one place.
type Scope struct {
	UserID int64
}

// ForUser returns the scope of u.
func ForUser(u *domain.User) Scope {
	if u == nil {
		return Scope{}
	}
	return Scope{UserID: u.ID}
}

// Validate returns ErrUnscoped if the scope has no owner.
func (s Scope) Validate() error {
	if s.UserID <= 0 {
		return ErrUnscoped
	}
	return nil
}

// SQL renders the owner predicate for the table aliased as alias, comparing
// against placeholder ("?" or "$n"). The caller binds s.UserID to it.
func (s Scope) SQL(alias, placeholder string) string {
	column := "user_id"
	if alias != "" {
		column = alias + ".user_id"
	}
	return column + " = " + placeholder
}
