// Package query compiles declarative filter conditions into a single
// predicate over decoded records. Compilation is pure: no I/O, no
// schema lookup. Field names are the fixed column conventions of the
// export, not schema-driven.
package query

import "time"

// Physical columns the conditions resolve to.
const (
	FieldCase      = "pnum"
	FieldDate      = "dop"
	FieldRecord    = "recno"
	FieldSurname   = "sname"
	FieldFirstName = "fname"
)

// Multi-value text families are stored as numbered columns (diag1,
// diag2, ...). Runs longer than this are not searched; confirmed
// against the shipped table layouts, which top out at six.
const maxTextRun = 6

// Condition is one declarative filter test. The supported set is the
// closed list of types below; Compile rejects anything else.
type Condition any

// Case number equals N. The stored value is fixed-width text; it is
// compared as a parsed integer, never as padded text.
type CaseIs struct{ N int }

// Raw case-number text starts with Prefix.
type CasePrefix struct{ Prefix string }

// Case number within [Lo, Hi], inclusive.
type CaseBetween struct{ Lo, Hi int }

// Procedure date equals On, compared by calendar day.
type DateIs struct{ On time.Time }

// Procedure date (or date-time) within [From, To], inclusive.
type DateBetween struct{ From, To time.Time }

// Record number equals N.
type RecordIs struct{ N int }

// Surname equals S, case-insensitively.
type SurnameIs struct{ S string }

// Full name ("first last") is within two single-character edits of S,
// case-insensitively.
type NameLike struct{ S string }

// Named text column contains S, case-insensitively. Used for the
// surgeon, anaesthetist and perfusionist columns.
type FieldContains struct{ Field, S string }

// The numbered column family Base (diagnosis, operation) contains S:
// columns base1..baseN joined by newlines, blanks skipped,
// case-insensitive containment.
type TextContains struct{ Base, S string }

// Date builds a calendar date from a y/m/d literal.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
}
