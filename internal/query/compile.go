package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jdf-id-au/jocap-reader/internal/dbf"
	"github.com/jdf-id-au/jocap-reader/pkg"
)

type Predicate func(dbf.Record) bool

type UnsupportedConditionError struct {
	Cond Condition
}

func (e *UnsupportedConditionError) Error() string {
	return fmt.Sprintf("Unsupported condition: %T", e.Cond)
}

// Compile turns a condition list into one AND-combined predicate.
// Unrecognized conditions fail here, before any file is touched: a
// bad condition must never degrade into "match everything".
func Compile(conds ...Condition) (Predicate, error) {
	preds := make([]Predicate, 0, len(conds))
	for _, cond := range conds {
		pred, err := compileCondition(cond)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}

	return func(row dbf.Record) bool {
		for _, pred := range preds {
			if !pred(row) {
				return false
			}
		}
		return true
	}, nil
}

// A record missing or failing to parse a conditioned field makes that
// condition false. Never an error: partial records must not match by
// accident.
func compileCondition(cond Condition) (Predicate, error) {
	switch cond := cond.(type) {
	case CaseIs:
		return func(row dbf.Record) bool {
			n, ok := CaseNumber(row)
			return ok && n == cond.N
		}, nil

	case CasePrefix:
		return func(row dbf.Record) bool {
			s, ok := textValue(row.Get(FieldCase))
			return ok && strings.HasPrefix(s, cond.Prefix)
		}, nil

	case CaseBetween:
		return func(row dbf.Record) bool {
			n, ok := CaseNumber(row)
			return ok && Between(n, cond.Lo, cond.Hi)
		}, nil

	case DateIs:
		return func(row dbf.Record) bool {
			d, ok := row.Get(FieldDate).(time.Time)
			return ok && sameDay(d, cond.On)
		}, nil

	case DateBetween:
		return func(row dbf.Record) bool {
			d, ok := row.Get(FieldDate).(time.Time)
			return ok && Between(d, cond.From, cond.To)
		}, nil

	case RecordIs:
		return func(row dbf.Record) bool {
			n, ok := intValue(row.Get(FieldRecord))
			return ok && n == cond.N
		}, nil

	case SurnameIs:
		return func(row dbf.Record) bool {
			s, ok := textValue(row.Get(FieldSurname))
			return ok && strings.EqualFold(s, cond.S)
		}, nil

	case NameLike:
		return func(row dbf.Record) bool {
			first, ok := textValue(row.Get(FieldFirstName))
			if !ok {
				return false
			}
			last, ok := textValue(row.Get(FieldSurname))
			if !ok {
				return false
			}
			full := strings.ToLower(first + " " + last)
			return pkg.Levenshtein(full, strings.ToLower(cond.S)) <= 2
		}, nil

	case FieldContains:
		field := cond.Field
		return func(row dbf.Record) bool {
			s, ok := textValue(row.Get(field))
			return ok && pkg.ContainsFold(s, cond.S)
		}, nil

	case TextContains:
		return func(row dbf.Record) bool {
			joined := joinTextRun(row, cond.Base)
			return joined != "" && pkg.ContainsFold(joined, cond.S)
		}, nil
	}

	return nil, &UnsupportedConditionError{Cond: cond}
}

// CaseNumber parses a record's case identifier. Stored as fixed-width
// text in most tables; leading zeros and whitespace are tolerated, and
// non-numeric content means no identifier rather than an error.
func CaseNumber(row dbf.Record) (int, bool) {
	switch v := row.Get(FieldCase).(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Between reports lo <= v <= hi, inclusive at both ends. Numeric
// values compare numerically and dates chronologically; those are the
// only two kinds this dispatch supports, and feeding it anything else
// is a programming error.
func Between(v, lo, hi any) bool {
	switch v := v.(type) {
	case int, float64:
		x, _ := numValue(v)
		l, lok := numValue(lo)
		h, hok := numValue(hi)
		if !lok || !hok {
			panic(fmt.Sprintf("between: numeric value with %T/%T bounds", lo, hi))
		}
		return l <= x && x <= h
	case time.Time:
		l, lok := lo.(time.Time)
		h, hok := hi.(time.Time)
		if !lok || !hok {
			panic(fmt.Sprintf("between: date value with %T/%T bounds", lo, hi))
		}
		return !v.Before(l) && !v.After(h)
	}
	panic(fmt.Sprintf("between: unsupported kind %T", v))
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func textValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func intValue(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func numValue(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func joinTextRun(row dbf.Record, base string) string {
	var parts []string
	for i := 1; i <= maxTextRun; i++ {
		s, ok := textValue(row.Get(fmt.Sprintf("%s%d", base, i)))
		if ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
