package query_test

import (
	"testing"
	"time"

	"github.com/jdf-id-au/jocap-reader/internal/dbf"
	. "github.com/jdf-id-au/jocap-reader/internal/query"
	"gotest.tools/assert"
)

func testRecord() dbf.Record {
	return dbf.Record{
		"pnum":    "  1007",
		"recno":   42,
		"sname":   "SMITH",
		"fname":   "John",
		"dop":     time.Date(2001, 3, 4, 0, 0, 0, 0, time.Local),
		"surgeon": "Dr A Cutter",
		"diag1":   "Aortic stenosis",
		"diag2":   "",
		"diag3":   "Mild MR",
	}
}

func matches(t *testing.T, row dbf.Record, conds ...Condition) bool {
	t.Helper()
	pred, err := Compile(conds...)
	assert.NilError(t, err)
	return pred(row)
}

func TestCaseConditions(t *testing.T) {
	row := testRecord()

	t.Run("exact parses padded text", func(t *testing.T) {
		assert.Assert(t, matches(t, row, CaseIs{N: 1007}))
		assert.Assert(t, !matches(t, row, CaseIs{N: 1008}))
	})

	t.Run("prefix is raw text", func(t *testing.T) {
		assert.Assert(t, matches(t, dbf.Record{"pnum": "1007"}, CasePrefix{Prefix: "100"}))
		assert.Assert(t, !matches(t, dbf.Record{"pnum": "2001"}, CasePrefix{Prefix: "100"}))
	})

	t.Run("range is inclusive", func(t *testing.T) {
		assert.Assert(t, matches(t, row, CaseBetween{Lo: 1007, Hi: 1050}))
		assert.Assert(t, matches(t, row, CaseBetween{Lo: 1000, Hi: 1007}))
		assert.Assert(t, !matches(t, row, CaseBetween{Lo: 1008, Hi: 1050}))
	})

	t.Run("unparseable case never matches", func(t *testing.T) {
		bad := dbf.Record{"pnum": "n/a"}
		assert.Assert(t, !matches(t, bad, CaseIs{N: 1007}))
		assert.Assert(t, !matches(t, bad, CaseBetween{Lo: 0, Hi: 9999}))
	})
}

func TestDateConditions(t *testing.T) {
	row := testRecord()

	assert.Assert(t, matches(t, row, DateIs{On: Date(2001, 3, 4)}))
	assert.Assert(t, !matches(t, row, DateIs{On: Date(2001, 3, 5)}))

	assert.Assert(t, matches(t, row, DateBetween{From: Date(2001, 1, 1), To: Date(2001, 12, 31)}))
	assert.Assert(t, !matches(t, row, DateBetween{From: Date(2002, 1, 1), To: Date(2002, 12, 31)}))

	t.Run("missing date is false", func(t *testing.T) {
		assert.Assert(t, !matches(t, dbf.Record{}, DateIs{On: Date(2001, 3, 4)}))
		assert.Assert(t, !matches(t, dbf.Record{}, DateBetween{From: Date(2001, 1, 1), To: Date(2001, 12, 31)}))
	})

	t.Run("works for date-times", func(t *testing.T) {
		row := dbf.Record{"dop": time.Date(2001, 3, 4, 14, 25, 0, 0, time.Local)}
		assert.Assert(t, matches(t, row, DateBetween{From: Date(2001, 3, 4), To: Date(2001, 3, 5)}))
		assert.Assert(t, matches(t, row, DateIs{On: Date(2001, 3, 4)}))
	})
}

func TestNameConditions(t *testing.T) {
	row := testRecord()

	assert.Assert(t, matches(t, row, SurnameIs{S: "smith"}))
	assert.Assert(t, !matches(t, row, SurnameIs{S: "smithe"}))

	t.Run("fuzzy tolerates two edits", func(t *testing.T) {
		assert.Assert(t, matches(t, row, NameLike{S: "John Smith"}))
		// two edits matches, three does not
		assert.Assert(t, matches(t, row, NameLike{S: "Jon Smyth"}))
		assert.Assert(t, !matches(t, row, NameLike{S: "Joan Smythe"}))
	})

	t.Run("missing name fields are false", func(t *testing.T) {
		assert.Assert(t, !matches(t, dbf.Record{"sname": "SMITH"}, NameLike{S: "John Smith"}))
	})
}

func TestContainsConditions(t *testing.T) {
	row := testRecord()

	assert.Assert(t, matches(t, row, FieldContains{Field: "surgeon", S: "cutter"}))
	assert.Assert(t, !matches(t, row, FieldContains{Field: "anaes", S: "cutter"}))

	t.Run("multi-field run skips blanks", func(t *testing.T) {
		assert.Assert(t, matches(t, row, TextContains{Base: "diag", S: "stenosis"}))
		assert.Assert(t, matches(t, row, TextContains{Base: "diag", S: "mild mr"}))
		assert.Assert(t, !matches(t, row, TextContains{Base: "diag", S: "cabg"}))
		assert.Assert(t, !matches(t, dbf.Record{}, TextContains{Base: "diag", S: ""}))
	})
}

func TestRecordIs(t *testing.T) {
	row := testRecord()
	assert.Assert(t, matches(t, row, RecordIs{N: 42}))
	assert.Assert(t, !matches(t, row, RecordIs{N: 43}))
	assert.Assert(t, !matches(t, dbf.Record{}, RecordIs{N: 42}))
}

func TestCompileAndCombines(t *testing.T) {
	row := testRecord()
	assert.Assert(t, matches(t, row, CaseIs{N: 1007}, SurnameIs{S: "Smith"}))
	assert.Assert(t, !matches(t, row, CaseIs{N: 1007}, SurnameIs{S: "Jones"}))
}

func TestCompileRejectsUnknownCondition(t *testing.T) {
	type rogue struct{}
	_, err := Compile(rogue{})
	unsupported, ok := err.(*UnsupportedConditionError)
	assert.Assert(t, ok, "want UnsupportedConditionError, got %v", err)
	assert.Assert(t, unsupported.Error() != "")
}

func TestBetween(t *testing.T) {
	t.Run("numeric bounds are inclusive", func(t *testing.T) {
		assert.Assert(t, Between(1, 1, 5))
		assert.Assert(t, Between(5, 1, 5))
		assert.Assert(t, Between(3.5, 1, 5))
		assert.Assert(t, !Between(0, 1, 5))
		assert.Assert(t, !Between(6, 1, 5))
	})

	t.Run("date bounds are inclusive", func(t *testing.T) {
		lo, hi := Date(2001, 1, 1), Date(2001, 12, 31)
		assert.Assert(t, Between(lo, lo, hi))
		assert.Assert(t, Between(hi, lo, hi))
		assert.Assert(t, !Between(Date(2002, 1, 1), lo, hi))
	})

	t.Run("other kinds panic", func(t *testing.T) {
		defer func() {
			assert.Assert(t, recover() != nil)
		}()
		Between("x", "a", "z")
	})
}

func TestRangeComposition(t *testing.T) {
	lo, hi := Date(2001, 1, 1), Date(2001, 12, 31)

	combined, err := Compile(DateBetween{From: lo, To: hi})
	assert.NilError(t, err)
	lower, err := Compile(DateBetween{From: lo, To: Date(2100, 1, 1)})
	assert.NilError(t, err)
	upper, err := Compile(DateBetween{From: Date(1900, 1, 1), To: hi})
	assert.NilError(t, err)

	for _, day := range []time.Time{
		Date(2000, 12, 31), Date(2001, 1, 1), Date(2001, 6, 15),
		Date(2001, 12, 31), Date(2002, 1, 1),
	} {
		row := dbf.Record{"dop": day}
		assert.Equal(t, combined(row), lower(row) && upper(row), day.String())
	}
}
