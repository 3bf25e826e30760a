package dbf_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/jdf-id-au/jocap-reader/internal/dbf"
	"github.com/jdf-id-au/jocap-reader/internal/dbf/dbftest"
	"gotest.tools/assert"
)

var patientCols = []dbftest.Column{
	{Name: "pnum", Code: 'C', Length: 8},
	{Name: "sname", Code: 'C', Length: 12},
	{Name: "weight", Code: 'N', Length: 6, Decimals: 1},
	{Name: "dop", Code: 'D', Length: 8},
	{Name: "pump_on", Code: 'T', Length: 8},
	{Name: "redo", Code: 'L', Length: 1},
	{Name: "recno", Code: 'I', Length: 4},
	{Name: "notes", Code: 'M', Length: 10},
}

func writePatientTable(t *testing.T, dir string, rows []dbftest.Row) string {
	t.Helper()
	path := filepath.Join(dir, "PATIENT.DBF")
	assert.NilError(t, dbftest.WriteTable(path, patientCols, rows))
	return path
}

func TestOpen(t *testing.T) {
	t.Run("header column count", func(t *testing.T) {
		path := writePatientTable(t, t.TempDir(), []dbftest.Row{
			{Cells: []any{"1007", "SMITH", "  80.5", "20010304", nil, true, 1, nil}},
		})

		table, err := Open(path)
		assert.NilError(t, err)
		assert.Equal(t, len(table.Fields), len(patientCols))
		assert.Equal(t, table.RecordCount, 1)
		assert.DeepEqual(t, table.Columns(),
			[]string{"pnum", "sname", "weight", "dop", "pump_on", "redo", "recno", "notes"})
		assert.Assert(t, !table.HasMemo())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "PATIENT.DBF"))
		_, ok := err.(*OpenError)
		assert.Assert(t, ok, "want OpenError, got %v", err)
	})

	t.Run("truncated file", func(t *testing.T) {
		path := writePatientTable(t, t.TempDir(), []dbftest.Row{
			{Cells: []any{"1007", "SMITH", "  80.5", "20010304", nil, true, 1, nil}},
		})
		raw, err := os.ReadFile(path)
		assert.NilError(t, err)
		assert.NilError(t, os.WriteFile(path, raw[:len(raw)-20], 0644))

		_, err = Open(path)
		_, ok := err.(*OpenError)
		assert.Assert(t, ok, "want OpenError, got %v", err)
	})

	t.Run("garbage header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "PATIENT.DBF")
		assert.NilError(t, os.WriteFile(path, []byte("not a table"), 0644))

		_, err := Open(path)
		_, ok := err.(*OpenError)
		assert.Assert(t, ok, "want OpenError, got %v", err)
	})

	t.Run("unmapped field type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "PATIENT.DBF")
		cols := []dbftest.Column{{Name: "blob", Code: 'G', Length: 10}}
		assert.NilError(t, dbftest.WriteTable(path, cols, nil))

		_, err := Open(path)
		_, ok := err.(*OpenError)
		assert.Assert(t, ok, "want OpenError, got %v", err)
	})

	t.Run("binary field with wrong length", func(t *testing.T) {
		// a short integer (or timestamp, or logical) layout would send
		// the record decoder out of bounds, so it must fail at open
		for _, col := range []dbftest.Column{
			{Name: "recno", Code: 'I', Length: 2},
			{Name: "pump_on", Code: 'T', Length: 4},
			{Name: "redo", Code: 'L', Length: 0},
		} {
			path := filepath.Join(t.TempDir(), "PATIENT.DBF")
			assert.NilError(t, dbftest.WriteTable(path, []dbftest.Column{col}, nil))

			_, err := Open(path)
			_, ok := err.(*OpenError)
			assert.Assert(t, ok, "column %s: want OpenError, got %v", col.Name, err)
		}
	})

	t.Run("memo file resolved case-insensitively", func(t *testing.T) {
		dir := t.TempDir()
		path := writePatientTable(t, dir, nil)
		assert.NilError(t, dbftest.WriteMemo(filepath.Join(dir, "Patient.dbt"), map[int][]byte{}))

		table, err := Open(path)
		assert.NilError(t, err)
		assert.Assert(t, table.HasMemo())
	})
}

func TestRowsDecode(t *testing.T) {
	dir := t.TempDir()
	pumpOn := time.Date(2001, 3, 4, 9, 30, 0, 0, time.Local)
	path := writePatientTable(t, dir, []dbftest.Row{
		{Cells: []any{"  1007", "SMITH", "  80.5", "20010304", pumpOn, true, 42, nil}},
		{Cells: []any{"1050", "NGUYEN", nil, nil, nil, nil, 43, nil}},
	})

	table, err := Open(path)
	assert.NilError(t, err)
	rows, err := table.Rows()
	assert.NilError(t, err)
	defer rows.Close()

	assert.Assert(t, rows.Next())
	row := rows.Row()
	assert.Equal(t, len(row), len(patientCols))
	assert.Equal(t, row.Get("pnum"), "1007")
	assert.Equal(t, row.Get("sname"), "SMITH")
	assert.Equal(t, row.Get("weight"), 80.5)
	assert.Equal(t, row.Get("dop"), time.Date(2001, 3, 4, 0, 0, 0, 0, time.Local))
	assert.Assert(t, row.Get("pump_on").(time.Time).Equal(pumpOn))
	assert.Equal(t, row.Get("redo"), true)
	assert.Equal(t, row.Get("recno"), 42)
	assert.Assert(t, row.Get("notes") == nil)

	assert.Assert(t, rows.Next())
	row = rows.Row()
	assert.Equal(t, row.Get("pnum"), "1050")
	assert.Assert(t, row.Get("weight") == nil)
	assert.Assert(t, row.Get("dop") == nil)
	assert.Assert(t, row.Get("pump_on") == nil)
	assert.Assert(t, row.Get("redo") == nil)

	assert.Assert(t, !rows.Next())
	assert.NilError(t, rows.Err())
}

func TestRowsSkipsDeleted(t *testing.T) {
	path := writePatientTable(t, t.TempDir(), []dbftest.Row{
		{Cells: []any{"1007", "SMITH", nil, nil, nil, nil, 1, nil}},
		{Cells: []any{"1050", "NGUYEN", nil, nil, nil, nil, 2, nil}, Deleted: true},
		{Cells: []any{"2001", "COHEN", nil, nil, nil, nil, 3, nil}},
	})

	table, err := Open(path)
	assert.NilError(t, err)
	rows, err := table.Rows()
	assert.NilError(t, err)
	defer rows.Close()

	var pnums []string
	for rows.Next() {
		pnums = append(pnums, rows.Row().Get("pnum").(string))
	}
	assert.NilError(t, rows.Err())
	assert.DeepEqual(t, pnums, []string{"1007", "2001"})
}

func TestRowsDecodeError(t *testing.T) {
	path := writePatientTable(t, t.TempDir(), []dbftest.Row{
		{Cells: []any{"1007", "SMITH", "eighty", nil, nil, nil, 1, nil}},
		{Cells: []any{"1050", "NGUYEN", nil, nil, nil, nil, 2, nil}},
	})

	table, err := Open(path)
	assert.NilError(t, err)
	rows, err := table.Rows()
	assert.NilError(t, err)

	// the bad numeric is fatal for the whole stream, not skipped
	assert.Assert(t, !rows.Next())
	decode_err, ok := rows.Err().(*DecodeError)
	assert.Assert(t, ok, "want DecodeError, got %v", rows.Err())
	assert.Equal(t, decode_err.Field, "weight")
	assert.Assert(t, !rows.Next())
}

func TestRowsResourceDiscipline(t *testing.T) {
	dir := t.TempDir()
	path := writePatientTable(t, dir, []dbftest.Row{
		{Cells: []any{"1007", "SMITH", nil, nil, nil, nil, 1, nil}},
		{Cells: []any{"1050", "NGUYEN", nil, nil, nil, nil, 2, nil}},
	})

	t.Run("released on completion", func(t *testing.T) {
		table, err := Open(path)
		assert.NilError(t, err)
		rows, err := table.Rows()
		assert.NilError(t, err)
		for rows.Next() {
		}
		assert.NilError(t, rows.Err())
		// already closed by exhaustion; Close stays safe
		assert.NilError(t, rows.Close())
		assert.NilError(t, rows.Close())
	})

	t.Run("released on early termination", func(t *testing.T) {
		table, err := Open(path)
		assert.NilError(t, err)
		rows, err := table.Rows()
		assert.NilError(t, err)
		assert.Assert(t, rows.Next())
		assert.NilError(t, rows.Close())
		assert.Assert(t, !rows.Next())

		// the path must be free for reuse immediately afterwards
		f, err := os.OpenFile(path, os.O_WRONLY, 0644)
		assert.NilError(t, err)
		assert.NilError(t, f.Close())
	})

	t.Run("restart requires reopening", func(t *testing.T) {
		table, err := Open(path)
		assert.NilError(t, err)
		rows, err := table.Rows()
		assert.NilError(t, err)
		n := 0
		for rows.Next() {
			n++
		}
		assert.Equal(t, n, 2)

		rows, err = table.Rows()
		assert.NilError(t, err)
		defer rows.Close()
		assert.Assert(t, rows.Next())
	})
}
