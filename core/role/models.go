package role

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

// Seeded roles
const (
	Executive    = 1
	Student      = 2
	Investigator = 4 // retired, never granted executive rights
)

var Names = map[int]string{
	Executive:    "executive",
	Student:      "student",
	Investigator: "investigator",
}

type Role struct {
	ID           int    `json:"id"`
	AccountScope string `json:"accountScope"`
}

// IsExecutive reports whether roleID is the executive role. A nil roleID is never executive.
func IsExecutive(roleID *int) bool {
	return roleID != nil && *roleID == Executive
}

// Is reports whether roleID is set to `want`.
func Is(roleID *int, want int) bool {
	return roleID != nil && *roleID == want
}

type NewRole struct {
	AccountScope string `json:"accountScope" validate:"required,max=64,alphanum_"`
}

func (nr *NewRole) Validate(validate *validator.Validate) error {
	nr.AccountScope = core.CleanString(nr.AccountScope, true /* lower */)
	return validate.Struct(nr)
}
